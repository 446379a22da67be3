package domain

import "time"

// Role identifies a user's privilege level. Numeric order is significant:
// lower values carry more privilege (1=admin, 2=moderator, 3=user).
type Role int

const (
	RoleAdmin     Role = 1
	RoleModerator Role = 2
	RoleUser      Role = 3
)

// Name returns the canonical role name.
func (r Role) Name() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleModerator:
		return "moderator"
	case RoleUser:
		return "user"
	default:
		return "unknown"
	}
}

type Book struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Year        int       `json:"year"`
	Publisher   string    `json:"publisher"`
	Author      string    `json:"author"`
	Pages       int       `json:"pages"`
	CoverID     *uint     `json:"coverId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Cover is a content-addressed image record. At most one cover exists per
// distinct content hash; concurrent uploads of the same bytes resolve to the
// same row.
type Cover struct {
	ID          uint   `json:"id"`
	FileName    string `json:"fileName"`
	MimeType    string `json:"mimeType"`
	ContentHash string `json:"-"`
}

type Genre struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type Review struct {
	ID        uint      `json:"id"`
	BookID    uint      `json:"bookId"`
	UserID    uint      `json:"userId"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type User struct {
	ID           uint      `json:"id"`
	Login        string    `json:"login"`
	PasswordHash string    `json:"-"`
	LastName     string    `json:"lastName"`
	FirstName    string    `json:"firstName"`
	MiddleName   string    `json:"middleName"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// FullName joins the name parts the way the admin views display them.
func (u User) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.FirstName, u.LastName, u.MiddleName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return u.Login
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += " " + p
	}
	return out
}

// Visit is an append-only view event. UserID is nil for anonymous visitors.
type Visit struct {
	ID        uint      `json:"id"`
	UserID    *uint     `json:"userId,omitempty"`
	BookID    uint      `json:"bookId"`
	VisitTime time.Time `json:"visitTime"`
}

// BookSummary is the aggregate listing row: outer-joined review and genre
// aggregates, so books with no reviews or genres still appear.
type BookSummary struct {
	Book
	AvgRating   *float64 `json:"avgRating"` // nil when the book has no reviews
	ReviewCount int      `json:"reviewCount"`
	Genres      string   `json:"genres"` // comma-joined names, ordered by name
}

// BookDetail is the single-book aggregate; AvgRating defaults to 0 for books
// without reviews.
type BookDetail struct {
	Book
	AvgRating     float64 `json:"avgRating"`
	ReviewCount   int     `json:"reviewCount"`
	Genres        string  `json:"genres"`
	CoverFileName string  `json:"coverFileName,omitempty"`
}

// ReviewWithAuthor pairs a review with its author's display fields.
type ReviewWithAuthor struct {
	Review
	Login    string `json:"login"`
	FullName string `json:"fullName"`
}

// BookRef is the compact shape used by popular/recent lists.
type BookRef struct {
	ID      uint   `json:"id"`
	Title   string `json:"title"`
	CoverID *uint  `json:"coverId,omitempty"`
}

type PopularBook struct {
	BookRef
	VisitCount int64 `json:"visitCount"`
}

// UserAction is one row of the admin visit log.
type UserAction struct {
	VisitID   uint      `json:"visitId"`
	VisitTime time.Time `json:"visitTime"`
	FullName  string    `json:"fullName"` // "anonymous" when the visit had no user
	BookTitle string    `json:"bookTitle"`
}

// BookStat is one row of the per-book visit-count view.
type BookStat struct {
	BookID     uint   `json:"bookId"`
	Title      string `json:"title"`
	VisitCount int64  `json:"visitCount"`
}
