package store

import (
	"time"

	"bookery/pkg/domain"
)

// Store defines persistence operations for the catalog, reviews, and visits.
//
// Uniqueness invariants (one review per (book, user), one cover per content
// hash, unique genre names and logins) are enforced by storage-level
// constraints, not application pre-checks; violations surface as
// domain.ErrConflict.
type Store interface {
	// users
	CreateUser(u domain.User) (domain.User, error)
	GetUserByLogin(login string) (domain.User, bool, error)
	GetUserByID(id uint) (domain.User, bool, error)

	// covers
	GetCover(id uint) (domain.Cover, bool, error)
	// CreateCover inserts a cover row keyed by content hash. When a row with
	// the same hash already exists it is returned with created=false and
	// persist is never called. Otherwise the row is created, its stored file
	// name is derived from the new id and c.FileName, and persist is invoked
	// inside the same transaction; a persist failure rolls the row back.
	CreateCover(c domain.Cover, persist func(domain.Cover) error) (cover domain.Cover, created bool, err error)

	// books
	CreateBook(b domain.Book, genreIDs []uint) (domain.Book, error)
	UpdateBook(b domain.Book, genreIDs []uint) error
	GetBook(id uint) (domain.Book, bool, error)
	// DeleteBook removes the book with its genre links, reviews, and visits.
	// The cover row is removed only when no other book references it; the
	// removed cover is returned so the caller can delete the stored file.
	DeleteBook(id uint) (*domain.Cover, error)
	CountBooks() (int64, error)
	ListBookSummaries(offset, limit int) ([]domain.BookSummary, error)
	GetBookDetail(id uint) (domain.BookDetail, bool, error)
	ListReviewsForBook(bookID uint) ([]domain.ReviewWithAuthor, error)

	// genres
	ListGenres() ([]domain.Genre, error)
	CreateGenre(name string) (domain.Genre, error)

	// reviews
	CreateReview(r domain.Review) (domain.Review, error)

	// visits
	CreateVisit(v domain.Visit) (domain.Visit, error)
	// CountVisits counts visits for the exact (user-or-anonymous, book) pair
	// at or after since. A nil userID matches only anonymous visits.
	CountVisits(userID *uint, bookID uint, since time.Time) (int64, error)
	PopularBooks(since time.Time, limit int) ([]domain.PopularBook, error)
	RecentBooks(userID *uint, limit int) ([]domain.BookRef, error)
	UserActions(offset, limit int) ([]domain.UserAction, int64, error)
	BookStats(offset, limit int, from, to *time.Time) ([]domain.BookStat, int64, error)
	ListVisits() ([]domain.Visit, error)
	// BookViewCounts returns all-time visit counts per book, including books
	// that were never visited.
	BookViewCounts() ([]domain.BookStat, error)
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID uint) (string, error)
	GetUserIDByToken(token string) (uint, bool, error)
	DeleteSession(token string) error
}
