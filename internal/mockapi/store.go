package mockapi

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"restqa/internal/model"
)

// SeedPosts is the number of posts present at startup.
const SeedPosts = 100

// Reqres listing constants.
const (
	PerPage   = 6
	SeedUsers = 12
)

// Person is a Reqres directory entry.
type Person struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Avatar    string `json:"avatar"`
}

var seedNames = [SeedUsers][2]string{
	{"George", "Bluth"}, {"Janet", "Weaver"}, {"Emma", "Wong"}, {"Eve", "Holt"},
	{"Charles", "Morris"}, {"Tracey", "Ramos"}, {"Michael", "Lawson"}, {"Lindsay", "Ferguson"},
	{"Tobias", "Funke"}, {"Byron", "Fields"}, {"George", "Edwards"}, {"Rachel", "Howell"},
}

// Store holds all mock API state in memory.
type Store struct {
	mu sync.RWMutex

	posts    map[int]model.Post
	nextPost int

	people   []Person
	nextUser int
	accounts map[string]string

	books    map[int]model.Book
	nextBook int
}

// NewStore returns a store with the seeded posts and Reqres people.
func NewStore() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Reset restores the seeded state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.posts = make(map[int]model.Post, SeedPosts)
	for i := 1; i <= SeedPosts; i++ {
		s.posts[i] = model.Post{
			ID:     intPtr(i),
			UserID: (i-1)/10 + 1,
			Title:  fmt.Sprintf("post %d title", i),
			Body:   fmt.Sprintf("post %d body", i),
		}
	}
	s.nextPost = SeedPosts + 1

	s.people = make([]Person, SeedUsers)
	for i, n := range seedNames {
		id := i + 1
		s.people[i] = Person{
			ID:        id,
			Email:     strings.ToLower(n[0]+"."+n[1]) + "@reqres.in",
			FirstName: n[0],
			LastName:  n[1],
			Avatar:    fmt.Sprintf("https://reqres.in/img/faces/%d-image.jpg", id),
		}
	}

	s.nextUser = SeedUsers + 1
	s.accounts = map[string]string{}
	s.books = map[int]model.Book{}
	s.nextBook = 1
}

// --- posts ---

func (s *Store) ListPosts() []model.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].ID < *out[j].ID })
	return out
}

func (s *Store) GetPost(id int) (model.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	return p, ok
}

// CreatePost assigns the next id and persists p.
func (s *Store) CreatePost(p model.Post) model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = intPtr(s.nextPost)
	s.nextPost++
	s.posts[*p.ID] = p
	return p
}

// ReplacePost stores p under id. The id in p is ignored.
func (s *Store) ReplacePost(id int, p model.Post) (model.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return model.Post{}, false
	}
	p.ID = intPtr(id)
	s.posts[id] = p
	return p, true
}

// PatchPost applies the non-nil fields of patch.
func (s *Store) PatchPost(id int, patch PostPatch) (model.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return model.Post{}, false
	}
	if patch.UserID != nil {
		p.UserID = *patch.UserID
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Body != nil {
		p.Body = *patch.Body
	}
	s.posts[id] = p
	return p, true
}

func (s *Store) DeletePost(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return false
	}
	delete(s.posts, id)
	return true
}

// PostPatch is a partial post update.
type PostPatch struct {
	UserID *int    `json:"userId"`
	Title  *string `json:"title"`
	Body   *string `json:"body"`
}

// --- reqres people ---

// Page returns the people on page (1-based) and the page count.
func (s *Store) Page(page int) ([]Person, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages := (len(s.people) + PerPage - 1) / PerPage
	start := (page - 1) * PerPage
	if page < 1 || start >= len(s.people) {
		return []Person{}, pages
	}
	end := min(start+PerPage, len(s.people))
	return append([]Person(nil), s.people[start:end]...), pages
}

func (s *Store) Person(id int) (Person, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.people {
		if p.ID == id {
			return p, true
		}
	}
	return Person{}, false
}

func (s *Store) PersonByEmail(email string) (Person, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.people {
		if strings.EqualFold(p.Email, email) {
			return p, true
		}
	}
	return Person{}, false
}

// NextUserID allocates an id for a created user. Created users are echoed,
// not added to the directory.
func (s *Store) NextUserID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextUser
	s.nextUser++
	return id
}

// --- accounts ---

var (
	errAccountExists = errors.New("account already exists")
	errBadLogin      = errors.New("invalid email or password")
)

// SignUp registers a new account.
func (s *Store) SignUp(c model.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(c.Email)
	if _, ok := s.accounts[key]; ok {
		return errAccountExists
	}
	s.accounts[key] = c.Password
	return nil
}

// LogIn checks the credentials and issues a session token.
func (s *Store) LogIn(c model.Credentials) (string, error) {
	if !s.Verify(c.Email, c.Password) {
		return "", errBadLogin
	}
	return uuid.NewString(), nil
}

// Verify reports whether user/password belong to a signed-up account.
func (s *Store) Verify(user, password string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pw, ok := s.accounts[strings.ToLower(user)]
	return ok && pw == password
}

// --- books ---

func (s *Store) AddBook(b model.Book) model.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = intPtr(s.nextBook)
	s.nextBook++
	s.books[*b.ID] = b
	return b
}

func (s *Store) Book(id int) (model.Book, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[id]
	return b, ok
}

func intPtr(i int) *int { return &i }
