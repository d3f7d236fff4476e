package steps

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"restqa/internal/assert"
	"restqa/internal/client"
	"restqa/internal/endpoints"
	"restqa/internal/model"
)

var errNoCredentials = errors.New("no credentials generated by an earlier step")

func (st *State) generateCredentials(length int) error {
	if length <= 0 {
		return errors.New("credential length must be positive")
	}
	c := model.NewCredentials(length)
	st.creds = &c
	return nil
}

func (st *State) credentials() (*model.Credentials, error) {
	if st.creds == nil {
		return nil, errNoCredentials
	}
	return st.creds, nil
}

// anonymous posts body to endpoint without the baseline's basic auth.
func (st *State) anonymous(ctx context.Context, endpoint string, body any) error {
	req, err := st.request(http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	req.WithoutAuth()
	if body != nil {
		req.WithBody(body)
	}
	return st.send(ctx, req)
}

func (st *State) signUp(ctx context.Context) error {
	c, err := st.credentials()
	if err != nil {
		return err
	}
	return st.anonymous(ctx, endpoints.SignUp, c)
}

func (st *State) logIn(ctx context.Context) error {
	c, err := st.credentials()
	if err != nil {
		return err
	}
	return st.anonymous(ctx, endpoints.LogIn, c)
}

func (st *State) logInWithoutCredentials(ctx context.Context) error {
	return st.anonymous(ctx, endpoints.LogIn, nil)
}

func (st *State) containsToken() error {
	return st.check(func(a *assert.Asserter, r *client.Response) { a.NotEmpty(r, "token") })
}

// addBook authenticates with the generated credentials.
func (st *State) addBook(ctx context.Context, title, author, isbn string) error {
	c, err := st.credentials()
	if err != nil {
		return err
	}
	req, err := st.request(http.MethodPost, endpoints.AddNewBook, nil)
	if err != nil {
		return err
	}
	req.WithBasicAuth(c.Email, c.Password).WithBody(model.Book{Title: title, Author: author, ISBN: isbn})
	return st.send(ctx, req)
}

func (st *State) storeBookID() error {
	return st.check(func(a *assert.Asserter, r *client.Response) {
		if !a.Greater(r, "id", 0) {
			return
		}
		id := int(assert.Lookup(r.Body, "id").Int())
		st.bookID = &id
	})
}

func (st *State) getStoredBook(ctx context.Context) error {
	if st.bookID == nil {
		return errNoStoredID
	}
	c, err := st.credentials()
	if err != nil {
		return err
	}
	req, err := st.request(http.MethodGet, endpoints.BookByID, map[string]string{"book_id": strconv.Itoa(*st.bookID)})
	if err != nil {
		return err
	}
	return st.send(ctx, req.WithBasicAuth(c.Email, c.Password))
}

var authSteps = []Definition{
	{`^I have generated credentials of length (\d+)$`, func(s *State) any { return s.generateCredentials }},
	{`^I sign up with the generated credentials$`, func(s *State) any { return s.signUp }},
	{`^I log in with the generated credentials$`, func(s *State) any { return s.logIn }},
	{`^I log in without credentials$`, func(s *State) any { return s.logInWithoutCredentials }},
	{`^the response should contain a token$`, func(s *State) any { return s.containsToken }},
	{`^I add a book titled "([^"]*)" by "([^"]*)" with ISBN "([^"]*)"$`, func(s *State) any { return s.addBook }},
	{`^I store the created book ID$`, func(s *State) any { return s.storeBookID }},
	{`^I request the stored book$`, func(s *State) any { return s.getStoredBook }},
}
