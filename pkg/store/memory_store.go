package store

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"bookery/pkg/domain"
)

// MemoryStore keeps the catalog in-process. It mirrors GormStore semantics
// (aggregate shapes, uniqueness, ordering) and backs the test suite plus the
// "memory" storage mode.
type MemoryStore struct {
	mu sync.RWMutex

	users   map[uint]domain.User
	logins  map[string]uint
	covers  map[uint]domain.Cover
	hashes  map[string]uint
	books   map[uint]domain.Book
	genres  map[uint]domain.Genre
	names   map[string]uint
	links   map[uint]map[uint]struct{} // bookID -> genreIDs
	reviews map[uint]domain.Review
	visits  []domain.Visit

	nextUser   uint
	nextCover  uint
	nextBook   uint
	nextGenre  uint
	nextReview uint
	nextVisit  uint
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[uint]domain.User),
		logins:  make(map[string]uint),
		covers:  make(map[uint]domain.Cover),
		hashes:  make(map[string]uint),
		books:   make(map[uint]domain.Book),
		genres:  make(map[uint]domain.Genre),
		names:   make(map[string]uint),
		links:   make(map[uint]map[uint]struct{}),
		reviews: make(map[uint]domain.Review),
	}
}

// CreateUser registers a user; duplicate logins conflict.
func (m *MemoryStore) CreateUser(u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.logins[u.Login]; exists {
		return domain.User{}, fmt.Errorf("%w: login %q taken", domain.ErrConflict, u.Login)
	}
	m.nextUser++
	u.ID = m.nextUser
	m.users[u.ID] = u
	m.logins[u.Login] = u.ID
	return u, nil
}

// GetUserByLogin looks up a user by login.
func (m *MemoryStore) GetUserByLogin(login string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.logins[login]
	if !ok {
		return domain.User{}, false, nil
	}
	return m.users[id], true, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id uint) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// GetCover returns a cover row by ID.
func (m *MemoryStore) GetCover(id uint) (domain.Cover, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.covers[id]
	return c, ok, nil
}

// CreateCover deduplicates by content hash; persist runs only for new rows
// and a persist failure leaves no row behind.
func (m *MemoryStore) CreateCover(c domain.Cover, persist func(domain.Cover) error) (domain.Cover, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.hashes[c.ContentHash]; ok {
		return m.covers[id], false, nil
	}
	m.nextCover++
	c.ID = m.nextCover
	c.FileName = fmt.Sprintf("%d_%s", c.ID, c.FileName)
	if persist != nil {
		if err := persist(c); err != nil {
			m.nextCover--
			return domain.Cover{}, false, fmt.Errorf("persist cover file: %w", err)
		}
	}
	m.covers[c.ID] = c
	m.hashes[c.ContentHash] = c.ID
	return c, true, nil
}

// CreateBook inserts the book and its genre links.
func (m *MemoryStore) CreateBook(b domain.Book, genreIDs []uint) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBook++
	b.ID = m.nextBook
	m.books[b.ID] = b
	m.setLinks(b.ID, genreIDs)
	return b, nil
}

// UpdateBook rewrites the book fields and replaces its genre links.
func (m *MemoryStore) UpdateBook(b domain.Book, genreIDs []uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[b.ID]; !ok {
		return domain.ErrNotFound
	}
	m.books[b.ID] = b
	m.setLinks(b.ID, genreIDs)
	return nil
}

func (m *MemoryStore) setLinks(bookID uint, genreIDs []uint) {
	set := make(map[uint]struct{}, len(genreIDs))
	for _, id := range genreIDs {
		set[id] = struct{}{}
	}
	m.links[bookID] = set
}

// GetBook retrieves a book.
func (m *MemoryStore) GetBook(id uint) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// DeleteBook removes the book, its links, reviews, and visits; the cover
// goes only when unreferenced afterwards.
func (m *MemoryStore) DeleteBook(id uint) (*domain.Cover, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(m.books, id)
	delete(m.links, id)
	for rid, r := range m.reviews {
		if r.BookID == id {
			delete(m.reviews, rid)
		}
	}
	kept := m.visits[:0]
	for _, v := range m.visits {
		if v.BookID != id {
			kept = append(kept, v)
		}
	}
	m.visits = kept

	if book.CoverID == nil {
		return nil, nil
	}
	for _, other := range m.books {
		if other.CoverID != nil && *other.CoverID == *book.CoverID {
			return nil, nil
		}
	}
	cover, ok := m.covers[*book.CoverID]
	if !ok {
		return nil, nil
	}
	delete(m.covers, cover.ID)
	delete(m.hashes, cover.ContentHash)
	return &cover, nil
}

// CountBooks returns the total number of books.
func (m *MemoryStore) CountBooks() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.books)), nil
}

// ListBookSummaries mirrors the SQL aggregate listing: outer-join review and
// genre aggregates, year-descending order, offset/limit pagination.
func (m *MemoryStore) ListBookSummaries(offset, limit int) ([]domain.BookSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := make([]domain.BookSummary, 0, len(m.books))
	for _, b := range m.books {
		s := domain.BookSummary{Book: b, Genres: m.genreList(b.ID)}
		sum, count := m.ratingTotals(b.ID)
		s.ReviewCount = count
		if count > 0 {
			avg := round2(float64(sum) / float64(count))
			s.AvgRating = &avg
		}
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Year != summaries[j].Year {
			return summaries[i].Year > summaries[j].Year
		}
		return summaries[i].ID > summaries[j].ID
	})
	return paginate(summaries, offset, limit), nil
}

// GetBookDetail returns the aggregate shape for one book with a zero-review
// default average of 0.
func (m *MemoryStore) GetBookDetail(id uint) (domain.BookDetail, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	if !ok {
		return domain.BookDetail{}, false, nil
	}
	detail := domain.BookDetail{Book: b, Genres: m.genreList(id)}
	sum, count := m.ratingTotals(id)
	detail.ReviewCount = count
	if count > 0 {
		detail.AvgRating = round2(float64(sum) / float64(count))
	}
	if b.CoverID != nil {
		if cover, ok := m.covers[*b.CoverID]; ok {
			detail.CoverFileName = cover.FileName
		}
	}
	return detail, true, nil
}

func (m *MemoryStore) genreList(bookID uint) string {
	names := make([]string, 0, len(m.links[bookID]))
	for genreID := range m.links[bookID] {
		if g, ok := m.genres[genreID]; ok {
			names = append(names, g.Name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func (m *MemoryStore) ratingTotals(bookID uint) (sum, count int) {
	for _, r := range m.reviews {
		if r.BookID == bookID {
			sum += r.Rating
			count++
		}
	}
	return sum, count
}

// ListReviewsForBook returns reviews with author display fields in insertion
// order.
func (m *MemoryStore) ListReviewsForBook(bookID uint) ([]domain.ReviewWithAuthor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ReviewWithAuthor, 0)
	for _, r := range m.reviews {
		if r.BookID != bookID {
			continue
		}
		author := m.users[r.UserID]
		out = append(out, domain.ReviewWithAuthor{
			Review:   r,
			Login:    author.Login,
			FullName: author.FullName(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListGenres returns all genres ordered by name.
func (m *MemoryStore) ListGenres() ([]domain.Genre, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Genre, 0, len(m.genres))
	for _, g := range m.genres {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateGenre inserts a genre; duplicate names conflict.
func (m *MemoryStore) CreateGenre(name string) (domain.Genre, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.names[name]; exists {
		return domain.Genre{}, fmt.Errorf("%w: genre %q exists", domain.ErrConflict, name)
	}
	m.nextGenre++
	g := domain.Genre{ID: m.nextGenre, Name: name}
	m.genres[g.ID] = g
	m.names[name] = g.ID
	return g, nil
}

// CreateReview enforces one review per (book, user).
func (m *MemoryStore) CreateReview(r domain.Review) (domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reviews {
		if existing.BookID == r.BookID && existing.UserID == r.UserID {
			return domain.Review{}, fmt.Errorf("%w: already reviewed", domain.ErrConflict)
		}
	}
	m.nextReview++
	r.ID = m.nextReview
	m.reviews[r.ID] = r
	return r, nil
}

// CreateVisit appends a visit event.
func (m *MemoryStore) CreateVisit(v domain.Visit) (domain.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextVisit++
	v.ID = m.nextVisit
	m.visits = append(m.visits, v)
	return v, nil
}

// CountVisits counts visits for the exact (user-or-anonymous, book) pair.
func (m *MemoryStore) CountVisits(userID *uint, bookID uint, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, v := range m.visits {
		if v.BookID != bookID || v.VisitTime.Before(since) {
			continue
		}
		if sameUser(v.UserID, userID) {
			count++
		}
	}
	return count, nil
}

func sameUser(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// PopularBooks ranks books by visit count inside the trailing window.
func (m *MemoryStore) PopularBooks(since time.Time, limit int) ([]domain.PopularBook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[uint]int64)
	for _, v := range m.visits {
		if !v.VisitTime.Before(since) {
			counts[v.BookID]++
		}
	}
	out := make([]domain.PopularBook, 0, len(counts))
	for bookID, count := range counts {
		b, ok := m.books[bookID]
		if !ok {
			continue
		}
		out = append(out, domain.PopularBook{
			BookRef:    domain.BookRef{ID: b.ID, Title: b.Title, CoverID: b.CoverID},
			VisitCount: count,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VisitCount != out[j].VisitCount {
			return out[i].VisitCount > out[j].VisitCount
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecentBooks returns the most recently visited books, user-scoped when
// userID is set.
func (m *MemoryStore) RecentBooks(userID *uint, limit int) ([]domain.BookRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	last := make(map[uint]time.Time)
	for _, v := range m.visits {
		if userID != nil && !sameUser(v.UserID, userID) {
			continue
		}
		if v.VisitTime.After(last[v.BookID]) {
			last[v.BookID] = v.VisitTime
		}
	}
	type entry struct {
		ref  domain.BookRef
		when time.Time
	}
	entries := make([]entry, 0, len(last))
	for bookID, when := range last {
		b, ok := m.books[bookID]
		if !ok {
			continue
		}
		entries = append(entries, entry{
			ref:  domain.BookRef{ID: b.ID, Title: b.Title, CoverID: b.CoverID},
			when: when,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].when.After(entries[j].when) })
	out := make([]domain.BookRef, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ref)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UserActions returns the paginated visit log, newest first.
func (m *MemoryStore) UserActions(offset, limit int) ([]domain.UserAction, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	actions := make([]domain.UserAction, 0, len(m.visits))
	for _, v := range m.visits {
		book, ok := m.books[v.BookID]
		if !ok {
			continue
		}
		fullName := "anonymous"
		if v.UserID != nil {
			if u, ok := m.users[*v.UserID]; ok {
				fullName = u.FullName()
			}
		}
		actions = append(actions, domain.UserAction{
			VisitID:   v.ID,
			VisitTime: v.VisitTime,
			FullName:  fullName,
			BookTitle: book.Title,
		})
	}
	sort.Slice(actions, func(i, j int) bool {
		if !actions[i].VisitTime.Equal(actions[j].VisitTime) {
			return actions[i].VisitTime.After(actions[j].VisitTime)
		}
		return actions[i].VisitID > actions[j].VisitID
	})
	total := int64(len(actions))
	return paginate(actions, offset, limit), total, nil
}

// BookStats returns per-book visit counts inside the optional range.
func (m *MemoryStore) BookStats(offset, limit int, from, to *time.Time) ([]domain.BookStat, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[uint]int64)
	for _, v := range m.visits {
		if from != nil && v.VisitTime.Before(*from) {
			continue
		}
		if to != nil && v.VisitTime.After(*to) {
			continue
		}
		counts[v.BookID]++
	}
	stats := make([]domain.BookStat, 0, len(counts))
	for bookID, count := range counts {
		b, ok := m.books[bookID]
		if !ok {
			continue
		}
		stats = append(stats, domain.BookStat{BookID: b.ID, Title: b.Title, VisitCount: count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].VisitCount != stats[j].VisitCount {
			return stats[i].VisitCount > stats[j].VisitCount
		}
		return stats[i].BookID < stats[j].BookID
	})
	total := int64(len(stats))
	return paginate(stats, offset, limit), total, nil
}

// ListVisits returns every visit, oldest first.
func (m *MemoryStore) ListVisits() ([]domain.Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Visit, len(m.visits))
	copy(out, m.visits)
	return out, nil
}

// BookViewCounts returns all-time counts per book, including zero.
func (m *MemoryStore) BookViewCounts() ([]domain.BookStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[uint]int64)
	for _, v := range m.visits {
		counts[v.BookID]++
	}
	out := make([]domain.BookStat, 0, len(m.books))
	for _, b := range m.books {
		out = append(out, domain.BookStat{BookID: b.ID, Title: b.Title, VisitCount: counts[b.ID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookID < out[j].BookID })
	return out, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
