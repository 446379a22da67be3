package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"bookery/pkg/domain"
)

const migrateLockID int64 = 62184620

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB, runs auto-migrations, and seeds the fixed role
// set.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&RoleModel{}, &UserModel{}, &CoverModel{}, &BookModel{},
			&GenreModel{}, &BookGenreModel{}, &ReviewModel{}, &VisitModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return seedRoles(tx)
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func seedRoles(db *gorm.DB) error {
	roles := []RoleModel{
		{ID: int(domain.RoleAdmin), Name: "admin", Description: "Full catalog management and statistics"},
		{ID: int(domain.RoleModerator), Name: "moderator", Description: "Catalog management and statistics"},
		{ID: int(domain.RoleUser), Name: "user", Description: "Browsing and reviews"},
	}
	for _, role := range roles {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&role).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", role.Name, err)
		}
	}
	return nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// translate maps GORM sentinel errors onto the domain taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	default:
		return err
	}
}

// CreateUser inserts a user; duplicate logins fail with domain.ErrConflict.
func (s *GormStore) CreateUser(u domain.User) (domain.User, error) {
	model := userToModel(u)
	if err := s.db.Create(&model).Error; err != nil {
		return domain.User{}, translate(err)
	}
	return userFromModel(model), nil
}

// GetUserByLogin looks up a user by login.
func (s *GormStore) GetUserByLogin(login string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("login = ?", login).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id uint) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetCover returns a cover row by ID.
func (s *GormStore) GetCover(id uint) (domain.Cover, bool, error) {
	var model CoverModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Cover{}, false, nil
		}
		return domain.Cover{}, false, err
	}
	return coverFromModel(model), true, nil
}

// CreateCover deduplicates by content hash. The unique constraint on the
// hash column makes concurrent uploads of the same bytes race safely: the
// loser's insert affects zero rows and resolves to the winner's row.
func (s *GormStore) CreateCover(c domain.Cover, persist func(domain.Cover) error) (domain.Cover, bool, error) {
	var out domain.Cover
	created := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		model := CoverModel{
			FileName:    c.FileName,
			MimeType:    c.MimeType,
			ContentHash: c.ContentHash,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "content_hash"}},
			DoNothing: true,
		}).Create(&model)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var existing CoverModel
			if err := tx.Where("content_hash = ?", c.ContentHash).First(&existing).Error; err != nil {
				return err
			}
			out = coverFromModel(existing)
			return nil
		}
		model.FileName = fmt.Sprintf("%d_%s", model.ID, model.FileName)
		if err := tx.Model(&CoverModel{}).Where("id = ?", model.ID).
			Update("file_name", model.FileName).Error; err != nil {
			return err
		}
		out = coverFromModel(model)
		if persist != nil {
			if err := persist(out); err != nil {
				return fmt.Errorf("persist cover file: %w", err)
			}
		}
		created = true
		return nil
	})
	if err != nil {
		return domain.Cover{}, false, translate(err)
	}
	return out, created, nil
}

// CreateBook inserts the book and its genre links as one atomic unit.
func (s *GormStore) CreateBook(b domain.Book, genreIDs []uint) (domain.Book, error) {
	model := bookToModel(b)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		return createGenreLinks(tx, model.ID, genreIDs)
	})
	if err != nil {
		return domain.Book{}, translate(err)
	}
	return bookFromModel(model), nil
}

// UpdateBook rewrites the book fields and replaces its genre links.
func (s *GormStore) UpdateBook(b domain.Book, genreIDs []uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&BookModel{}).Where("id = ?", b.ID).Updates(map[string]any{
			"title":       b.Title,
			"description": b.Description,
			"year":        b.Year,
			"publisher":   b.Publisher,
			"author":      b.Author,
			"pages":       b.Pages,
			"cover_id":    b.CoverID,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		if err := tx.Delete(&BookGenreModel{}, "book_id = ?", b.ID).Error; err != nil {
			return err
		}
		return createGenreLinks(tx, b.ID, genreIDs)
	})
	return translate(err)
}

func createGenreLinks(tx *gorm.DB, bookID uint, genreIDs []uint) error {
	seen := make(map[uint]struct{}, len(genreIDs))
	for _, genreID := range genreIDs {
		if _, dup := seen[genreID]; dup {
			continue
		}
		seen[genreID] = struct{}{}
		link := BookGenreModel{BookID: bookID, GenreID: genreID}
		if err := tx.Create(&link).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id uint) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// DeleteBook removes the book and everything it owns. The cover row is
// shared by content, so it goes only when this was the last referencing
// book; the removed cover is returned for file cleanup after commit.
func (s *GormStore) DeleteBook(id uint) (*domain.Cover, error) {
	var removed *domain.Cover
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var book BookModel
		if err := tx.First(&book, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if err := tx.Delete(&BookGenreModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ReviewModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&VisitModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&BookModel{}, "id = ?", id).Error; err != nil {
			return err
		}
		if book.CoverID == nil {
			return nil
		}
		var others int64
		if err := tx.Model(&BookModel{}).
			Where("cover_id = ? AND id <> ?", *book.CoverID, id).
			Count(&others).Error; err != nil {
			return err
		}
		if others > 0 {
			return nil
		}
		var cover CoverModel
		if err := tx.First(&cover, "id = ?", *book.CoverID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := tx.Delete(&CoverModel{}, "id = ?", cover.ID).Error; err != nil {
			return err
		}
		out := coverFromModel(cover)
		removed = &out
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return removed, nil
}

// CountBooks returns the total number of books.
func (s *GormStore) CountBooks() (int64, error) {
	var count int64
	if err := s.db.Model(&BookModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

type bookSummaryRow struct {
	ID          uint
	Title       string
	Description string
	Year        int
	Publisher   string
	Author      string
	Pages       int
	CoverID     *uint
	CreatedAt   time.Time
	AvgRating   *float64
	ReviewCount int
	Genres      string
}

// ListBookSummaries returns one aggregate row per book ordered by year
// descending. Outer joins keep books without reviews or genres; the review
// aggregates are counted distinct so the genre join cannot inflate them.
func (s *GormStore) ListBookSummaries(offset, limit int) ([]domain.BookSummary, error) {
	var rows []bookSummaryRow
	err := s.db.Raw(`
		SELECT b.id, b.title, b.description, b.year, b.publisher, b.author,
		       b.pages, b.cover_id, b.created_at,
		       ROUND(AVG(r.rating)::numeric, 2)::float8 AS avg_rating,
		       COUNT(DISTINCT r.id) AS review_count,
		       COALESCE(STRING_AGG(DISTINCT g.name, ', ' ORDER BY g.name), '') AS genres
		FROM books b
		LEFT JOIN reviews r ON r.book_id = b.id
		LEFT JOIN book_genres bg ON bg.book_id = b.id
		LEFT JOIN genres g ON g.id = bg.genre_id
		GROUP BY b.id
		ORDER BY b.year DESC, b.id DESC
		LIMIT ? OFFSET ?`, limit, offset).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.BookSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.BookSummary{
			Book:        bookFromSummaryRow(row),
			AvgRating:   row.AvgRating,
			ReviewCount: row.ReviewCount,
			Genres:      row.Genres,
		})
	}
	return out, nil
}

// GetBookDetail returns the aggregate shape for one book; books without
// reviews report a zero average instead of null.
func (s *GormStore) GetBookDetail(id uint) (domain.BookDetail, bool, error) {
	var rows []bookSummaryRow
	err := s.db.Raw(`
		SELECT b.id, b.title, b.description, b.year, b.publisher, b.author,
		       b.pages, b.cover_id, b.created_at,
		       COALESCE(ROUND(AVG(r.rating)::numeric, 2), 0)::float8 AS avg_rating,
		       COUNT(DISTINCT r.id) AS review_count,
		       COALESCE(STRING_AGG(DISTINCT g.name, ', ' ORDER BY g.name), '') AS genres
		FROM books b
		LEFT JOIN reviews r ON r.book_id = b.id
		LEFT JOIN book_genres bg ON bg.book_id = b.id
		LEFT JOIN genres g ON g.id = bg.genre_id
		WHERE b.id = ?
		GROUP BY b.id`, id).Scan(&rows).Error
	if err != nil {
		return domain.BookDetail{}, false, err
	}
	if len(rows) == 0 {
		return domain.BookDetail{}, false, nil
	}
	row := rows[0]
	detail := domain.BookDetail{
		Book:        bookFromSummaryRow(row),
		ReviewCount: row.ReviewCount,
		Genres:      row.Genres,
	}
	if row.AvgRating != nil {
		detail.AvgRating = *row.AvgRating
	}
	if row.CoverID != nil {
		if cover, ok, err := s.GetCover(*row.CoverID); err == nil && ok {
			detail.CoverFileName = cover.FileName
		}
	}
	return detail, true, nil
}

type reviewAuthorRow struct {
	ID         uint
	BookID     uint
	UserID     uint
	Rating     int
	Text       string
	CreatedAt  time.Time
	Login      string
	FirstName  string
	LastName   string
	MiddleName string
}

// ListReviewsForBook returns the book's reviews joined to reviewer display
// fields, in insertion order.
func (s *GormStore) ListReviewsForBook(bookID uint) ([]domain.ReviewWithAuthor, error) {
	var rows []reviewAuthorRow
	err := s.db.Raw(`
		SELECT r.id, r.book_id, r.user_id, r.rating, r.text, r.created_at,
		       u.login, u.first_name, u.last_name, u.middle_name
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.book_id = ?
		ORDER BY r.id`, bookID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.ReviewWithAuthor, 0, len(rows))
	for _, row := range rows {
		author := domain.User{
			Login:      row.Login,
			FirstName:  row.FirstName,
			LastName:   row.LastName,
			MiddleName: row.MiddleName,
		}
		out = append(out, domain.ReviewWithAuthor{
			Review: domain.Review{
				ID:        row.ID,
				BookID:    row.BookID,
				UserID:    row.UserID,
				Rating:    row.Rating,
				Text:      row.Text,
				CreatedAt: row.CreatedAt,
			},
			Login:    row.Login,
			FullName: author.FullName(),
		})
	}
	return out, nil
}

// ListGenres returns all genres ordered by name.
func (s *GormStore) ListGenres() ([]domain.Genre, error) {
	var models []GenreModel
	if err := s.db.Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Genre, 0, len(models))
	for _, m := range models {
		out = append(out, domain.Genre{ID: m.ID, Name: m.Name})
	}
	return out, nil
}

// CreateGenre inserts a genre; duplicate names fail with domain.ErrConflict.
func (s *GormStore) CreateGenre(name string) (domain.Genre, error) {
	model := GenreModel{Name: name}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Genre{}, translate(err)
	}
	return domain.Genre{ID: model.ID, Name: model.Name}, nil
}

// CreateReview inserts a review. The unique (book_id, user_id) index closes
// the race between duplicate checks and inserts; violations come back as
// domain.ErrConflict.
func (s *GormStore) CreateReview(r domain.Review) (domain.Review, error) {
	model := ReviewModel{
		BookID:    r.BookID,
		UserID:    r.UserID,
		Rating:    r.Rating,
		Text:      r.Text,
		CreatedAt: r.CreatedAt,
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Review{}, translate(err)
	}
	r.ID = model.ID
	return r, nil
}

// CreateVisit appends a visit event.
func (s *GormStore) CreateVisit(v domain.Visit) (domain.Visit, error) {
	model := VisitModel{UserID: v.UserID, BookID: v.BookID, VisitTime: v.VisitTime}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Visit{}, err
	}
	v.ID = model.ID
	return v, nil
}

// CountVisits counts visits for the exact (user-or-anonymous, book) pair
// since the given time. IS NOT DISTINCT FROM gives null-safe matching for
// anonymous visitors.
func (s *GormStore) CountVisits(userID *uint, bookID uint, since time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&VisitModel{}).
		Where("book_id = ? AND visit_time >= ?", bookID, since).
		Where("user_id IS NOT DISTINCT FROM ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

type popularRow struct {
	ID         uint
	Title      string
	CoverID    *uint
	VisitCount int64
}

// PopularBooks ranks books by visit count inside the trailing window.
func (s *GormStore) PopularBooks(since time.Time, limit int) ([]domain.PopularBook, error) {
	var rows []popularRow
	err := s.db.Raw(`
		SELECT b.id, b.title, b.cover_id, COUNT(v.id) AS visit_count
		FROM books b
		JOIN visits v ON v.book_id = b.id
		WHERE v.visit_time >= ?
		GROUP BY b.id
		ORDER BY visit_count DESC, b.id
		LIMIT ?`, since, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.PopularBook, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.PopularBook{
			BookRef:    domain.BookRef{ID: row.ID, Title: row.Title, CoverID: row.CoverID},
			VisitCount: row.VisitCount,
		})
	}
	return out, nil
}

// RecentBooks returns the most recently visited books, scoped to one user's
// visits when userID is set.
func (s *GormStore) RecentBooks(userID *uint, limit int) ([]domain.BookRef, error) {
	query := `
		SELECT b.id, b.title, b.cover_id
		FROM books b
		JOIN visits v ON v.book_id = b.id`
	args := []any{}
	if userID != nil {
		query += ` WHERE v.user_id = ?`
		args = append(args, *userID)
	}
	query += `
		GROUP BY b.id
		ORDER BY MAX(v.visit_time) DESC
		LIMIT ?`
	args = append(args, limit)

	var rows []popularRow
	if err := s.db.Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.BookRef, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.BookRef{ID: row.ID, Title: row.Title, CoverID: row.CoverID})
	}
	return out, nil
}

type userActionRow struct {
	ID         uint
	VisitTime  time.Time
	UserID     *uint
	Login      string
	FirstName  string
	LastName   string
	MiddleName string
	Title      string
}

// UserActions returns the paginated admin visit log, newest first, with the
// total visit count for page math.
func (s *GormStore) UserActions(offset, limit int) ([]domain.UserAction, int64, error) {
	var total int64
	if err := s.db.Model(&VisitModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []userActionRow
	err := s.db.Raw(`
		SELECT v.id, v.visit_time, v.user_id,
		       COALESCE(u.login, '') AS login,
		       COALESCE(u.first_name, '') AS first_name,
		       COALESCE(u.last_name, '') AS last_name,
		       COALESCE(u.middle_name, '') AS middle_name,
		       b.title
		FROM visits v
		JOIN books b ON b.id = v.book_id
		LEFT JOIN users u ON u.id = v.user_id
		ORDER BY v.visit_time DESC, v.id DESC
		LIMIT ? OFFSET ?`, limit, offset).Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	out := make([]domain.UserAction, 0, len(rows))
	for _, row := range rows {
		fullName := "anonymous"
		if row.UserID != nil {
			u := domain.User{
				Login:      row.Login,
				FirstName:  row.FirstName,
				LastName:   row.LastName,
				MiddleName: row.MiddleName,
			}
			fullName = u.FullName()
		}
		out = append(out, domain.UserAction{
			VisitID:   row.ID,
			VisitTime: row.VisitTime,
			FullName:  fullName,
			BookTitle: row.Title,
		})
	}
	return out, total, nil
}

// BookStats returns per-book visit counts ordered descending, optionally
// restricted to an inclusive date range. Books without visits in the range
// are excluded, matching the admin view.
func (s *GormStore) BookStats(offset, limit int, from, to *time.Time) ([]domain.BookStat, int64, error) {
	where := "1=1"
	args := []any{}
	if from != nil {
		where += " AND v.visit_time >= ?"
		args = append(args, *from)
	}
	if to != nil {
		where += " AND v.visit_time <= ?"
		args = append(args, *to)
	}

	var total int64
	countArgs := append([]any{}, args...)
	if err := s.db.Raw(`
		SELECT COUNT(DISTINCT b.id)
		FROM books b
		JOIN visits v ON v.book_id = b.id
		WHERE `+where, countArgs...).Scan(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []popularRow
	args = append(args, limit, offset)
	err := s.db.Raw(`
		SELECT b.id, b.title, COUNT(v.id) AS visit_count
		FROM books b
		JOIN visits v ON v.book_id = b.id
		WHERE `+where+`
		GROUP BY b.id
		ORDER BY visit_count DESC, b.id
		LIMIT ? OFFSET ?`, args...).Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	out := make([]domain.BookStat, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.BookStat{BookID: row.ID, Title: row.Title, VisitCount: row.VisitCount})
	}
	return out, total, nil
}

// ListVisits returns every visit row, oldest first, for the CSV export.
func (s *GormStore) ListVisits() ([]domain.Visit, error) {
	var models []VisitModel
	if err := s.db.Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Visit, 0, len(models))
	for _, m := range models {
		out = append(out, domain.Visit{ID: m.ID, UserID: m.UserID, BookID: m.BookID, VisitTime: m.VisitTime})
	}
	return out, nil
}

// BookViewCounts returns all-time counts per book including never-visited
// books, for the CSV export.
func (s *GormStore) BookViewCounts() ([]domain.BookStat, error) {
	var rows []popularRow
	err := s.db.Raw(`
		SELECT b.id, b.title, COUNT(v.id) AS visit_count
		FROM books b
		LEFT JOIN visits v ON v.book_id = b.id
		GROUP BY b.id
		ORDER BY b.id`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.BookStat, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.BookStat{BookID: row.ID, Title: row.Title, VisitCount: row.VisitCount})
	}
	return out, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Login:        u.Login,
		PasswordHash: u.PasswordHash,
		LastName:     u.LastName,
		FirstName:    u.FirstName,
		MiddleName:   u.MiddleName,
		RoleID:       int(u.Role),
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Login:        m.Login,
		PasswordHash: m.PasswordHash,
		LastName:     m.LastName,
		FirstName:    m.FirstName,
		MiddleName:   m.MiddleName,
		Role:         domain.Role(m.RoleID),
		CreatedAt:    m.CreatedAt,
	}
}

func coverFromModel(m CoverModel) domain.Cover {
	return domain.Cover{
		ID:          m.ID,
		FileName:    m.FileName,
		MimeType:    m.MimeType,
		ContentHash: m.ContentHash,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:          b.ID,
		Title:       b.Title,
		Description: b.Description,
		Year:        b.Year,
		Publisher:   b.Publisher,
		Author:      b.Author,
		Pages:       b.Pages,
		CoverID:     b.CoverID,
		CreatedAt:   b.CreatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Year:        m.Year,
		Publisher:   m.Publisher,
		Author:      m.Author,
		Pages:       m.Pages,
		CoverID:     m.CoverID,
		CreatedAt:   m.CreatedAt,
	}
}

func bookFromSummaryRow(row bookSummaryRow) domain.Book {
	return domain.Book{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Year:        row.Year,
		Publisher:   row.Publisher,
		Author:      row.Author,
		Pages:       row.Pages,
		CoverID:     row.CoverID,
		CreatedAt:   row.CreatedAt,
	}
}
