package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID           uint   `gorm:"primaryKey"`
	Login        string `gorm:"size:50;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:128;not null"`
	LastName     string `gorm:"size:50"`
	FirstName    string `gorm:"size:50"`
	MiddleName   string `gorm:"size:50"`
	RoleID       int    `gorm:"not null;index"`
	CreatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type RoleModel struct {
	ID          int    `gorm:"primaryKey"`
	Name        string `gorm:"size:20;not null"`
	Description string `gorm:"type:text"`
}

func (RoleModel) TableName() string { return "roles" }

type CoverModel struct {
	ID          uint   `gorm:"primaryKey"`
	FileName    string `gorm:"size:128"`
	MimeType    string `gorm:"size:128"`
	ContentHash string `gorm:"size:32;uniqueIndex;not null"`
}

func (CoverModel) TableName() string { return "covers" }

type BookModel struct {
	ID          uint   `gorm:"primaryKey"`
	Title       string `gorm:"size:255;not null"`
	Description string `gorm:"type:text;not null"`
	Year        int    `gorm:"not null;index"`
	Publisher   string `gorm:"size:255;not null"`
	Author      string `gorm:"size:255;not null"`
	Pages       int    `gorm:"not null"`
	CoverID     *uint  `gorm:"index"`
	CreatedAt   time.Time
}

func (BookModel) TableName() string { return "books" }

type GenreModel struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:100;uniqueIndex;not null"`
}

func (GenreModel) TableName() string { return "genres" }

// BookGenreModel links books and genres; the composite primary key keeps the
// pairing unique.
type BookGenreModel struct {
	BookID  uint `gorm:"primaryKey"`
	GenreID uint `gorm:"primaryKey"`
}

func (BookGenreModel) TableName() string { return "book_genres" }

type ReviewModel struct {
	ID        uint `gorm:"primaryKey"`
	BookID    uint `gorm:"not null;uniqueIndex:idx_reviews_book_user"`
	UserID    uint `gorm:"not null;uniqueIndex:idx_reviews_book_user"`
	Rating    int  `gorm:"not null"`
	Text      string
	CreatedAt time.Time `gorm:"not null"`
}

func (ReviewModel) TableName() string { return "reviews" }

type VisitModel struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    *uint     `gorm:"index:idx_visits_user_book_time"`
	BookID    uint      `gorm:"not null;index:idx_visits_user_book_time"`
	VisitTime time.Time `gorm:"not null;index:idx_visits_user_book_time"`
}

func (VisitModel) TableName() string { return "visits" }
