// Package mockapi serves an in-memory stand-in for the APIs the harness
// exercises: a JSONPlaceholder-style posts resource, the Reqres users
// directory with registration, and a small sign-up/login/books service
// guarded by basic auth.
package mockapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"restqa/internal/model"
)

const (
	contentType       = "application/json; charset=utf-8"
	defaultServerName = "cloudflare"
)

type Options struct {
	// BasePath mounts every route below it, e.g. "/api".
	BasePath string
	// ServerName is sent in the Server response header.
	ServerName string
	// Latency delays every response.
	Latency time.Duration
	Log     zerolog.Logger
}

type Server struct {
	store  *Store
	log    zerolog.Logger
	router *chi.Mux
	opts   Options
}

// New builds the router over store.
func New(store *Store, opts Options) *Server {
	if opts.ServerName == "" {
		opts.ServerName = defaultServerName
	}
	s := &Server{store: store, log: opts.Log, router: chi.NewRouter(), opts: opts}

	r := s.router
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.SetHeader("Server", opts.ServerName))
	r.Use(s.requestLog)
	if opts.Latency > 0 {
		r.Use(s.delay)
	}

	base := "/" + strings.Trim(opts.BasePath, "/")
	if base == "/" {
		s.routes(r)
	} else {
		r.Route(base, s.routes)
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) { writeJSON(w, http.StatusNotFound, struct{}{}) })
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) Store() *Store { return s.store }

func (s *Server) routes(r chi.Router) {
	r.Route("/posts", func(r chi.Router) {
		r.Get("/", s.listPosts)
		r.Post("/", s.createPost)
		r.Get("/{id}", s.getPost)
		r.Put("/{id}", s.replacePost)
		r.Patch("/{id}", s.patchPost)
		r.Delete("/{id}", s.deletePost)
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/", s.listUsers)
		r.Post("/", s.createUser)
		r.Get("/{id}", s.getUser)
		r.Put("/{id}", s.updateUser)
		r.Patch("/{id}", s.updateUser)
		r.Delete("/{id}", s.deleteUser)
	})
	r.Post("/register", s.register)

	r.Post("/signup", s.signUp)
	r.Post("/login", s.logIn)
	r.Group(func(r chi.Router) {
		r.Use(s.basicAuth)
		r.Post("/books", s.addBook)
		r.Get("/books/{book_id}", s.getBook)
	})
}

// --- middleware ---

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("mock request")
	})
}

func (s *Server) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(s.opts.Latency):
		case <-r.Context().Done():
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || !s.store.Verify(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="books"`)
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- posts ---

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	posts := s.store.ListPosts()
	if uid := r.URL.Query().Get("userId"); uid != "" {
		n, err := strconv.Atoi(uid)
		if err != nil {
			writeJSON(w, http.StatusOK, []model.Post{})
			return
		}
		filtered := posts[:0]
		for _, p := range posts {
			if p.UserID == n {
				filtered = append(filtered, p)
			}
		}
		posts = filtered
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	p, found := s.store.GetPost(id)
	if !found {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var in model.Post
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, s.store.CreatePost(in))
}

func (s *Server) replacePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	var in model.Post
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, found := s.store.ReplacePost(id, in)
	if !found {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) patchPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	var in PostPatch
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, found := s.store.PatchPost(id, in)
	if !found {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok || !s.store.DeletePost(id) {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// --- reqres users ---

type support struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

var supportInfo = support{
	URL:  "https://reqres.in/#support-heading",
	Text: "To keep ReqRes free, contributions towards server costs are appreciated!",
}

type userPage struct {
	Page       int      `json:"page"`
	PerPage    int      `json:"per_page"`
	Total      int      `json:"total"`
	TotalPages int      `json:"total_pages"`
	Data       []Person `json:"data"`
	Support    support  `json:"support"`
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = n
	}
	people, pages := s.store.Page(page)
	writeJSON(w, http.StatusOK, userPage{
		Page:       page,
		PerPage:    PerPage,
		Total:      SeedUsers,
		TotalPages: pages,
		Data:       people,
		Support:    supportInfo,
	})
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	p, found := s.store.Person(id)
	if !found {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": p, "support": supportInfo})
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	in, err := decodeObject(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in["id"] = strconv.Itoa(s.store.NextUserID())
	in["createdAt"] = timestamp()
	writeJSON(w, http.StatusCreated, in)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	in, err := decodeObject(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in["updatedAt"] = timestamp()
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch {
	case in.Email == "" && in.Username == "":
		writeError(w, http.StatusBadRequest, "Missing email or username")
		return
	case in.Password == "":
		writeError(w, http.StatusBadRequest, "Missing password")
		return
	}
	p, ok := s.store.PersonByEmail(in.Email)
	if !ok {
		writeError(w, http.StatusBadRequest, "Note: Only defined users succeed registration")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": p.ID, "token": model.RandomString(17)})
}

// --- accounts and books ---

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var in model.Credentials
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Email == "" || in.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if err := s.store.SignUp(in); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"email": in.Email, "message": "account created"})
}

func (s *Server) logIn(w http.ResponseWriter, r *http.Request) {
	var in model.Credentials
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Email == "" || in.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	token, err := s.store.LogIn(in)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) addBook(w http.ResponseWriter, r *http.Request) {
	var in model.Book
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	writeJSON(w, http.StatusCreated, s.store.AddBook(in))
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "book_id")
	if !ok {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	b, found := s.store.Book(id)
	if !found {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// --- helpers ---

var errEmptyBody = errors.New("request body is empty")

func decode(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return errEmptyBody
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.New("malformed JSON body")
	}
	return nil
}

func decodeObject(r *http.Request) (map[string]any, error) {
	var in map[string]any
	if err := decode(r, &in); err != nil {
		return nil, err
	}
	if in == nil {
		return nil, errors.New("body must be a JSON object")
	}
	return in, nil
}

func pathID(r *http.Request, key string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, key))
	return n, err == nil
}

func timestamp() string { return time.Now().UTC().Format("2006-01-02T15:04:05.000Z") }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
