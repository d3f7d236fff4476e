// Package model holds the records exchanged with the APIs under test.
// Encoding omits absent fields; decoding ignores fields it does not know.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
)

// Post is a JSONPlaceholder-style post. ID stays nil until the server
// assigns one.
type Post struct {
	ID     *int   `json:"id,omitempty"`
	UserID int    `json:"userId,omitempty"`
	Title  string `json:"title,omitempty"`
	Body   string `json:"body,omitempty"`
}

func NewPost(userID int, title, body string) *Post {
	return &Post{UserID: userID, Title: title, Body: body}
}

func (p *Post) WithID(id int) *Post {
	p.ID = &id
	return p
}

// User is the Reqres create/update payload and its echo.
type User struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Job       string `json:"job,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

type Credentials struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

type Book struct {
	ID     *int   `json:"id,omitempty"`
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	ISBN   string `json:"isbn,omitempty"`
}

var ErrEmptyBody = errors.New("empty body")

// Decode unmarshals a JSON body into v.
func Decode(data []byte, v any) error {
	if len(data) == 0 {
		return ErrEmptyBody
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomString returns length characters drawn from A-Z and 0-9.
func RandomString(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(b)
}

// NewCredentials generates a throwaway sign-up identity.
func NewCredentials(length int) Credentials {
	return Credentials{
		Email:    RandomString(length) + "@example.com",
		Password: RandomString(length),
	}
}
