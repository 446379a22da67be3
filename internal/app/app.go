// Package app implements the catalog's use cases on top of the store,
// session, and cover storage interfaces.
package app

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"bookery/pkg/auth"
	"bookery/pkg/domain"
	"bookery/pkg/markup"
	"bookery/pkg/storage"
	"bookery/pkg/store"
)

// perPage is the fixed catalog page size.
const perPage = 10

// popularWindow bounds the popularity ranking to recent visits.
const popularWindow = 90 * 24 * time.Hour

const homeListLimit = 5

// Options carries tunables that are off by default.
type Options struct {
	// MaxRating caps review ratings when > 0; 0 keeps ratings unbounded
	// above 1.
	MaxRating int
}

// App wires the storage layers together and enforces authorization.
type App struct {
	store     store.Store
	sessions  store.SessionStore
	covers    storage.CoverStorage
	visits    *VisitRecorder
	maxRating int
}

func New(st store.Store, sessions store.SessionStore, covers storage.CoverStorage, visits *VisitRecorder, opts Options) *App {
	return &App{
		store:     st,
		sessions:  sessions,
		covers:    covers,
		visits:    visits,
		maxRating: opts.MaxRating,
	}
}

func authorize(user *domain.User, action domain.Action) error {
	if user == nil {
		return fmt.Errorf("%w: sign in to continue", domain.ErrAuthRequired)
	}
	if !domain.Can(user.Role, action) {
		return fmt.Errorf("%w: %s is not permitted for role %s", domain.ErrForbidden, action, user.Role.Name())
	}
	return nil
}

// SignUp registers a user with the regular role and opens a session.
func (a *App) SignUp(login, password, lastName, firstName, middleName string) (domain.User, string, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return domain.User{}, "", fmt.Errorf("%w: login and password are required", domain.ErrValidation)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", err
	}
	user, err := a.store.CreateUser(domain.User{
		Login:        login,
		PasswordHash: hash,
		LastName:     strings.TrimSpace(lastName),
		FirstName:    strings.TrimSpace(firstName),
		MiddleName:   strings.TrimSpace(middleName),
		Role:         domain.RoleUser,
	})
	if err != nil {
		return domain.User{}, "", err
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("open session: %w", err)
	}
	return user, token, nil
}

// Login verifies credentials and opens a session. Unknown logins and wrong
// passwords are indistinguishable to the caller.
func (a *App) Login(login, password string) (domain.User, string, error) {
	user, ok, err := a.store.GetUserByLogin(strings.TrimSpace(login))
	if err != nil {
		return domain.User{}, "", err
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", fmt.Errorf("%w: invalid login or password", domain.ErrAuthRequired)
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("open session: %w", err)
	}
	return user, token, nil
}

func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// UserFromToken resolves a session token to its user.
func (a *App) UserFromToken(token string) (domain.User, bool, error) {
	userID, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false, err
	}
	return a.store.GetUserByID(userID)
}

// BookPage is one page of the catalog listing.
type BookPage struct {
	Books      []domain.BookSummary `json:"books"`
	Page       int                  `json:"page"`
	TotalPages int                  `json:"totalPages"`
	Total      int64                `json:"total"`
	Warning    string               `json:"warning,omitempty"`
}

const listingWarning = "book listing is temporarily unavailable"

// ListBooks returns the requested catalog page. Listing failures degrade to
// an empty page carrying a warning so the catalog stays reachable.
func (a *App) ListBooks(page int) BookPage {
	if page < 1 {
		page = 1
	}
	total, err := a.store.CountBooks()
	if err != nil {
		slog.Warn("count books failed", "error", err)
		return BookPage{Page: page, Warning: listingWarning}
	}
	books, err := a.store.ListBookSummaries((page-1)*perPage, perPage)
	if err != nil {
		slog.Warn("book listing failed", "page", page, "error", err)
		return BookPage{Page: page, Warning: listingWarning}
	}
	return BookPage{
		Books:      books,
		Page:       page,
		TotalPages: int(math.Ceil(float64(total) / perPage)),
		Total:      total,
	}
}

// PopularBooks ranks books by visits over the last 90 days.
func (a *App) PopularBooks() ([]domain.PopularBook, error) {
	return a.store.PopularBooks(time.Now().UTC().Add(-popularWindow), homeListLimit)
}

// RecentBooks lists the viewer's latest viewed books, or the latest viewed
// books overall for anonymous viewers.
func (a *App) RecentBooks(userID *uint) ([]domain.BookRef, error) {
	return a.store.RecentBooks(userID, homeListLimit)
}

// BookView is the show-page aggregate.
type BookView struct {
	domain.BookDetail
	Reviews []domain.ReviewWithAuthor `json:"reviews"`
}

// ShowBook loads a book with its reviews and records the visit
// asynchronously.
func (a *App) ShowBook(id uint, userID *uint) (BookView, error) {
	detail, ok, err := a.store.GetBookDetail(id)
	if err != nil {
		return BookView{}, err
	}
	if !ok {
		return BookView{}, fmt.Errorf("%w: book %d", domain.ErrNotFound, id)
	}
	reviews, err := a.store.ListReviewsForBook(id)
	if err != nil {
		return BookView{}, err
	}
	a.visits.Record(userID, id)
	return BookView{BookDetail: detail, Reviews: reviews}, nil
}

// CoverUpload is an uploaded cover image.
type CoverUpload struct {
	FileName string
	Data     []byte
}

// BookInput carries book fields for create and update. Description is
// markdown source and is rendered to sanitized HTML before storage.
type BookInput struct {
	Title       string
	Description string
	Year        int
	Publisher   string
	Author      string
	Pages       int
	GenreIDs    []uint
	Cover       *CoverUpload
}

func (a *App) CreateBook(user *domain.User, in BookInput) (domain.Book, error) {
	if err := authorize(user, domain.ActionAdd); err != nil {
		return domain.Book{}, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Book{}, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	book := domain.Book{
		Title:       title,
		Description: markup.Render(in.Description),
		Year:        in.Year,
		Publisher:   strings.TrimSpace(in.Publisher),
		Author:      strings.TrimSpace(in.Author),
		Pages:       in.Pages,
	}
	if in.Cover != nil {
		cover, err := a.SaveCover(in.Cover.FileName, in.Cover.Data)
		if err != nil {
			return domain.Book{}, err
		}
		book.CoverID = &cover.ID
	}
	return a.store.CreateBook(book, in.GenreIDs)
}

func (a *App) UpdateBook(user *domain.User, id uint, in BookInput) (domain.Book, error) {
	if err := authorize(user, domain.ActionEdit); err != nil {
		return domain.Book{}, err
	}
	existing, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, err
	}
	if !ok {
		return domain.Book{}, fmt.Errorf("%w: book %d", domain.ErrNotFound, id)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Book{}, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	book := domain.Book{
		ID:          id,
		Title:       title,
		Description: markup.Render(in.Description),
		Year:        in.Year,
		Publisher:   strings.TrimSpace(in.Publisher),
		Author:      strings.TrimSpace(in.Author),
		Pages:       in.Pages,
		CoverID:     existing.CoverID,
		CreatedAt:   existing.CreatedAt,
	}
	if in.Cover != nil {
		cover, err := a.SaveCover(in.Cover.FileName, in.Cover.Data)
		if err != nil {
			return domain.Book{}, err
		}
		book.CoverID = &cover.ID
	}
	if err := a.store.UpdateBook(book, in.GenreIDs); err != nil {
		return domain.Book{}, err
	}
	return book, nil
}

// DeleteBook removes a book and, when its cover is no longer referenced,
// the stored cover file.
func (a *App) DeleteBook(user *domain.User, id uint) error {
	if err := authorize(user, domain.ActionDelete); err != nil {
		return err
	}
	cover, err := a.store.DeleteBook(id)
	if err != nil {
		return err
	}
	if cover != nil {
		if err := a.covers.Remove(cover.FileName); err != nil {
			slog.Warn("remove cover file failed", "cover_id", cover.ID, "error", err)
		}
	}
	return nil
}

// AddReview stores one review per user per book; the text is rendered from
// markdown to sanitized HTML.
func (a *App) AddReview(user *domain.User, bookID uint, rating int, text string) (domain.Review, error) {
	if user == nil {
		return domain.Review{}, fmt.Errorf("%w: sign in to review", domain.ErrAuthRequired)
	}
	if rating < 1 {
		return domain.Review{}, fmt.Errorf("%w: rating must be at least 1", domain.ErrValidation)
	}
	if a.maxRating > 0 && rating > a.maxRating {
		return domain.Review{}, fmt.Errorf("%w: rating must be at most %d", domain.ErrValidation, a.maxRating)
	}
	if _, ok, err := a.store.GetBook(bookID); err != nil {
		return domain.Review{}, err
	} else if !ok {
		return domain.Review{}, fmt.Errorf("%w: book %d", domain.ErrNotFound, bookID)
	}
	return a.store.CreateReview(domain.Review{
		BookID: bookID,
		UserID: user.ID,
		Rating: rating,
		Text:   markup.Render(text),
	})
}

func (a *App) ListGenres() ([]domain.Genre, error) {
	return a.store.ListGenres()
}

func (a *App) CreateGenre(user *domain.User, name string) (domain.Genre, error) {
	if err := authorize(user, domain.ActionAdd); err != nil {
		return domain.Genre{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Genre{}, fmt.Errorf("%w: genre name is required", domain.ErrValidation)
	}
	return a.store.CreateGenre(name)
}

// UserActions returns one admin page of the visit log, newest first.
func (a *App) UserActions(user *domain.User, page int) ([]domain.UserAction, int64, error) {
	if err := authorize(user, domain.ActionViewStats); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	return a.store.UserActions((page-1)*perPage, perPage)
}

// BookStats returns one admin page of per-book view counts, optionally
// bounded to a visit-time range.
func (a *App) BookStats(user *domain.User, page int, from, to *time.Time) ([]domain.BookStat, int64, error) {
	if err := authorize(user, domain.ActionViewStats); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	return a.store.BookStats((page-1)*perPage, perPage, from, to)
}
