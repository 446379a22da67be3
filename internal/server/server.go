// Package server exposes the catalog's JSON API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bookery/internal/app"
	"bookery/internal/ratelimit"
	"bookery/internal/util"
	"bookery/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                      *app.App
	RedisAddr                string
	RedisPassword            string
	SignupRateLimitPerMinute int
	LoginRateLimitPerMinute  int
	MaxUploadBytes           int64
	TrustedProxies           *util.TrustedProxies
}

// Server exposes HTTP endpoints for the catalog.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	maxUploadBytes int64
	trusted        *util.TrustedProxies
	signupLimiter  *ratelimit.FixedWindowLimiter
	loginLimiter   *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured. Rate limiting is active
// only when a Redis address is supplied.
func New(cfg Config) (*Server, error) {
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
		trusted:        cfg.TrustedProxies,
	}
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		signupLimit := cfg.SignupRateLimitPerMinute
		if signupLimit <= 0 {
			signupLimit = 5
		}
		loginLimit := cfg.LoginRateLimitPerMinute
		if loginLimit <= 0 {
			loginLimit = 10
		}
		newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
			prefix := "bookery:ratelimit:" + name
			limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
			if err != nil {
				return nil, fmt.Errorf("init %s limiter: %w", name, err)
			}
			return limiter, nil
		}
		var err error
		if s.signupLimiter, err = newLimiter("signup", signupLimit); err != nil {
			return nil, err
		}
		if s.loginLimiter, err = newLimiter("login", loginLimit); err != nil {
			return nil, err
		}
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware stack applied.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithSecurityHeaders(util.WithCORS(h))
	h = util.WithRequestLog(s.trusted, h)
	return util.WithRequestID(h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))

	// catalog
	s.mux.Handle("/api/books", s.optionalUser(s.handleBooks))
	s.mux.Handle("/api/books/", s.optionalUser(s.handleBookSubtree))
	s.mux.HandleFunc("/api/covers/", s.handleCover)
	s.mux.Handle("/api/genres", s.optionalUser(s.handleGenres))

	// admin stats
	s.mux.Handle("/api/admin/user-actions", s.authenticated(s.handleUserActions))
	s.mux.Handle("/api/admin/book-stats", s.authenticated(s.handleBookStats))
	s.mux.Handle("/api/admin/exports/visits", s.authenticated(s.handleExportVisits))
	s.mux.Handle("/api/admin/exports/book-stats", s.authenticated(s.handleExportBookStats))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, *domain.User)

// authenticated resolves the bearer token and rejects requests without a
// valid session.
func (s *Server) authenticated(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.resolveUser(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

// optionalUser resolves the bearer token when present; anonymous requests
// proceed with a nil user.
func (s *Server) optionalUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := s.resolveUser(r)
		next(w, r, user)
	})
}

func (s *Server) resolveUser(r *http.Request) (*domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return nil, false
	}
	user, ok, err := s.app.UserFromToken(token)
	if err != nil || !ok {
		return nil, false
	}
	return &user, true
}

// auth handlers

type signupRequest struct {
	Login      string `json:"login"`
	Password   string `json:"password"`
	LastName   string `json:"lastName"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		return
	}
	var req signupRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.SignUp(req.Login, req.Password, req.LastName, req.FirstName, req.MiddleName)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Login, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.app.Logout(token); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user *domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// catalog handlers

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request, user *domain.User) {
	switch r.Method {
	case http.MethodGet:
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		writeJSON(w, http.StatusOK, s.app.ListBooks(page))
	case http.MethodPost:
		in, err := s.parseBookInput(r)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		book, err := s.app.CreateBook(user, in)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, book)
	default:
		methodNotAllowed(w)
	}
}

// handleBookSubtree dispatches /api/books/{id}, /api/books/{id}/reviews,
// and the popular/recent listings.
func (s *Server) handleBookSubtree(w http.ResponseWriter, r *http.Request, user *domain.User) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/books/"), "/")
	switch rest {
	case "popular":
		s.handlePopular(w, r)
		return
	case "recent":
		s.handleRecent(w, r, user)
		return
	}
	idPart, tail, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseUint(idPart, 10, 32)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	bookID := uint(id)
	switch tail {
	case "":
		s.handleBookByID(w, r, user, bookID)
	case "reviews":
		s.handleReviews(w, r, user, bookID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	books, err := s.app.PopularBooks()
	if err != nil {
		slog.Warn("popular books failed", "error", err)
		books = nil
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": books})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request, user *domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	var userID *uint
	if user != nil {
		userID = &user.ID
	}
	books, err := s.app.RecentBooks(userID)
	if err != nil {
		slog.Warn("recent books failed", "error", err)
		books = nil
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": books})
}

func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request, user *domain.User, bookID uint) {
	switch r.Method {
	case http.MethodGet:
		var userID *uint
		if user != nil {
			userID = &user.ID
		}
		view, err := s.app.ShowBook(bookID, userID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodPut:
		in, err := s.parseBookInput(r)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		book, err := s.app.UpdateBook(user, bookID, in)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodDelete:
		if err := s.app.DeleteBook(user, bookID); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

type reviewRequest struct {
	Rating int    `json:"rating"`
	Text   string `json:"text"`
}

func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request, user *domain.User, bookID uint) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req reviewRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	review, err := s.app.AddReview(user, bookID, req.Rating, req.Text)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (s *Server) handleCover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	idPart := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/covers/"), "/")
	id, err := strconv.ParseUint(idPart, 10, 32)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	cover, body, err := s.app.ServeCover(uint(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer body.Close()
	w.Header().Set("Content-Type", cover.MimeType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("stream cover failed", "cover_id", cover.ID, "error", err)
	}
}

type genreRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request, user *domain.User) {
	switch r.Method {
	case http.MethodGet:
		genres, err := s.app.ListGenres()
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"genres": genres})
	case http.MethodPost:
		var req genreRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		genre, err := s.app.CreateGenre(user, req.Name)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, genre)
	default:
		methodNotAllowed(w)
	}
}

// admin handlers

func (s *Server) handleUserActions(w http.ResponseWriter, r *http.Request, user *domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	actions, total, err := s.app.UserActions(user, page)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions, "total": total})
}

func (s *Server) handleBookStats(w http.ResponseWriter, r *http.Request, user *domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	// unparseable dates are ignored rather than rejected
	from := parseDateParam(r.URL.Query().Get("from"), false)
	to := parseDateParam(r.URL.Query().Get("to"), true)
	stats, total, err := s.app.BookStats(user, page, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats, "total": total})
}

func (s *Server) handleExportVisits(w http.ResponseWriter, r *http.Request, user *domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="visits.csv"`)
	if err := s.app.ExportVisitsCSV(user, w); err != nil {
		writeDomainError(w, err)
	}
}

func (s *Server) handleExportBookStats(w http.ResponseWriter, r *http.Request, user *domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="book-stats.csv"`)
	if err := s.app.ExportBookStatsCSV(user, w); err != nil {
		writeDomainError(w, err)
	}
}

// parseBookInput reads book fields from either a JSON body or a multipart
// form with an optional cover file.
func (s *Server) parseBookInput(r *http.Request) (app.BookInput, error) {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		var req struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Year        int    `json:"year"`
			Publisher   string `json:"publisher"`
			Author      string `json:"author"`
			Pages       int    `json:"pages"`
			GenreIDs    []uint `json:"genreIds"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			return app.BookInput{}, fmt.Errorf("%w: invalid JSON body", domain.ErrValidation)
		}
		return app.BookInput{
			Title:       req.Title,
			Description: req.Description,
			Year:        req.Year,
			Publisher:   req.Publisher,
			Author:      req.Author,
			Pages:       req.Pages,
			GenreIDs:    req.GenreIDs,
		}, nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		return app.BookInput{}, fmt.Errorf("%w: invalid or oversized form", domain.ErrValidation)
	}
	year, _ := strconv.Atoi(r.FormValue("year"))
	pages, _ := strconv.Atoi(r.FormValue("pages"))
	in := app.BookInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Year:        year,
		Publisher:   r.FormValue("publisher"),
		Author:      r.FormValue("author"),
		Pages:       pages,
		GenreIDs:    parseIDList(r.FormValue("genreIds")),
	}
	file, header, err := r.FormFile("cover")
	if err == nil {
		defer file.Close()
		data, readErr := io.ReadAll(file)
		if readErr != nil {
			return app.BookInput{}, fmt.Errorf("%w: read cover upload", domain.ErrValidation)
		}
		in.Cover = &app.CoverUpload{FileName: header.Filename, Data: data}
	} else if !errors.Is(err, http.ErrMissingFile) {
		return app.BookInput{}, fmt.Errorf("%w: invalid cover upload", domain.ErrValidation)
	}
	return in, nil
}

func parseIDList(raw string) []uint {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]uint, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
		if err != nil {
			continue
		}
		out = append(out, uint(id))
	}
	return out
}

// parseDateParam parses a YYYY-MM-DD query value, returning nil for empty or
// unparseable input. With endOfDay the returned time is the start of the
// following day, making the named day inclusive as an exclusive upper bound.
func parseDateParam(raw string, endOfDay bool) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return nil
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return &t
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trusted)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAuthRequired):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 10 * 1024 * 1024
	}
	return value
}
