package app

import (
	"errors"
	"strings"
	"testing"

	"bookery/pkg/domain"
	"bookery/pkg/storage"
	"bookery/pkg/store"
)

func newTestApp(t *testing.T, opts Options) (*App, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	covers, err := storage.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}
	a := New(ms, store.NewMemorySessionStore(), covers, NewVisitRecorder(ms), opts)
	return a, ms
}

func adminUser(t *testing.T, ms *store.MemoryStore) *domain.User {
	t.Helper()
	u, err := ms.CreateUser(domain.User{Login: "admin", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	return &u
}

func regularUser(t *testing.T, ms *store.MemoryStore, login string) *domain.User {
	t.Helper()
	u, err := ms.CreateUser(domain.User{Login: login, Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &u
}

func TestSignUpAndLogin(t *testing.T) {
	a, _ := newTestApp(t, Options{})

	user, token, err := a.SignUp("reader", "s3cret", "Doe", "Jane", "")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if user.Role != domain.RoleUser {
		t.Fatalf("new user role = %v, want regular user", user.Role)
	}
	if token == "" {
		t.Fatal("sign up should open a session")
	}

	got, ok, err := a.UserFromToken(token)
	if err != nil || !ok || got.ID != user.ID {
		t.Fatalf("resolve token: got=%+v ok=%v err=%v", got, ok, err)
	}

	if _, _, err := a.Login("reader", "wrong"); !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("wrong password err = %v, want ErrAuthRequired", err)
	}
	if _, _, err := a.Login("nobody", "s3cret"); !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("unknown login err = %v, want ErrAuthRequired", err)
	}

	_, token2, err := a.Login("reader", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := a.Logout(token2); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok, _ := a.UserFromToken(token2); ok {
		t.Fatal("token should be invalid after logout")
	}
}

func TestSignUpValidation(t *testing.T) {
	a, _ := newTestApp(t, Options{})
	if _, _, err := a.SignUp("  ", "pw", "", "", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("blank login err = %v, want ErrValidation", err)
	}
	if _, _, err := a.SignUp("x", "", "", "", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty password err = %v, want ErrValidation", err)
	}
	if _, _, err := a.SignUp("dup", "pw", "", "", ""); err != nil {
		t.Fatalf("first sign up: %v", err)
	}
	if _, _, err := a.SignUp("dup", "pw", "", "", ""); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate login err = %v, want ErrConflict", err)
	}
}

func TestBookAuthorization(t *testing.T) {
	a, ms := newTestApp(t, Options{})
	reader := regularUser(t, ms, "reader")

	in := BookInput{Title: "Dune"}
	if _, err := a.CreateBook(nil, in); !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("anonymous create err = %v, want ErrAuthRequired", err)
	}
	if _, err := a.CreateBook(reader, in); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("regular user create err = %v, want ErrForbidden", err)
	}
	if err := a.DeleteBook(reader, 1); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("regular user delete err = %v, want ErrForbidden", err)
	}
	if _, _, err := a.UserActions(reader, 1); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("regular user stats err = %v, want ErrForbidden", err)
	}
	if _, _, err := a.UserActions(nil, 1); !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("anonymous stats err = %v, want ErrAuthRequired", err)
	}
}

func TestCreateBookRendersDescription(t *testing.T) {
	a, ms := newTestApp(t, Options{})
	admin := adminUser(t, ms)

	book, err := a.CreateBook(admin, BookInput{
		Title:       "Dune",
		Description: "A **classic** novel.\n\n<script>alert(1)</script>",
		Year:        1965,
	})
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	if !strings.Contains(book.Description, "<strong>classic</strong>") {
		t.Fatalf("markdown not rendered: %q", book.Description)
	}
	if strings.Contains(book.Description, "<script") {
		t.Fatalf("script not stripped: %q", book.Description)
	}

	if _, err := a.CreateBook(admin, BookInput{Title: "   "}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("blank title err = %v, want ErrValidation", err)
	}
}

func TestUpdateBookKeepsCoverWhenNoneUploaded(t *testing.T) {
	a, ms := newTestApp(t, Options{})
	admin := adminUser(t, ms)

	book, err := a.CreateBook(admin, BookInput{
		Title: "Dune",
		Cover: &CoverUpload{FileName: "dune.png", Data: []byte("png-bytes")},
	})
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	if book.CoverID == nil {
		t.Fatal("expected cover to be stored")
	}

	updated, err := a.UpdateBook(admin, book.ID, BookInput{Title: "Dune (revised)"})
	if err != nil {
		t.Fatalf("update book: %v", err)
	}
	if updated.CoverID == nil || *updated.CoverID != *book.CoverID {
		t.Fatalf("cover id changed: %v -> %v", book.CoverID, updated.CoverID)
	}

	if _, err := a.UpdateBook(admin, 999, BookInput{Title: "x"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update missing err = %v, want ErrNotFound", err)
	}
}

func TestAddReview(t *testing.T) {
	a, ms := newTestApp(t, Options{})
	admin := adminUser(t, ms)
	reader := regularUser(t, ms, "reader")

	book, err := a.CreateBook(admin, BookInput{Title: "Dune"})
	if err != nil {
		t.Fatalf("create book: %v", err)
	}

	if _, err := a.AddReview(nil, book.ID, 5, "x"); !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("anonymous review err = %v, want ErrAuthRequired", err)
	}
	if _, err := a.AddReview(reader, book.ID, 0, "x"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("zero rating err = %v, want ErrValidation", err)
	}
	if _, err := a.AddReview(reader, 999, 4, "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing book err = %v, want ErrNotFound", err)
	}

	review, err := a.AddReview(reader, book.ID, 4, "*loved* it <script>x</script>")
	if err != nil {
		t.Fatalf("add review: %v", err)
	}
	if !strings.Contains(review.Text, "<em>loved</em>") || strings.Contains(review.Text, "<script") {
		t.Fatalf("review text not sanitized: %q", review.Text)
	}

	if _, err := a.AddReview(reader, book.ID, 2, "again"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second review err = %v, want ErrConflict", err)
	}
	// ratings above 5 are allowed when no cap is configured
	other := regularUser(t, ms, "other")
	if _, err := a.AddReview(other, book.ID, 11, "great"); err != nil {
		t.Fatalf("uncapped rating err = %v", err)
	}
}

func TestAddReviewWithRatingCap(t *testing.T) {
	a, ms := newTestApp(t, Options{MaxRating: 5})
	admin := adminUser(t, ms)
	reader := regularUser(t, ms, "reader")

	book, err := a.CreateBook(admin, BookInput{Title: "Dune"})
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	if _, err := a.AddReview(reader, book.ID, 6, "x"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("over-cap rating err = %v, want ErrValidation", err)
	}
	if _, err := a.AddReview(reader, book.ID, 5, "x"); err != nil {
		t.Fatalf("max rating should pass: %v", err)
	}
}

func TestListBooksPageMath(t *testing.T) {
	a, ms := newTestApp(t, Options{})
	admin := adminUser(t, ms)
	for i := 0; i < 13; i++ {
		if _, err := a.CreateBook(admin, BookInput{Title: "Book", Year: 2000 + i}); err != nil {
			t.Fatalf("create book %d: %v", i, err)
		}
	}

	page := a.ListBooks(1)
	if page.Total != 13 || page.TotalPages != 2 || len(page.Books) != 10 {
		t.Fatalf("page 1 = total %d pages %d len %d", page.Total, page.TotalPages, len(page.Books))
	}
	page = a.ListBooks(2)
	if len(page.Books) != 3 {
		t.Fatalf("page 2 len = %d, want 3", len(page.Books))
	}
	page = a.ListBooks(5)
	if len(page.Books) != 0 || page.Page != 5 {
		t.Fatalf("page beyond end should be empty, got %d items", len(page.Books))
	}
	page = a.ListBooks(0)
	if page.Page != 1 {
		t.Fatalf("page 0 should clamp to 1, got %d", page.Page)
	}
}

type brokenListingStore struct {
	store.Store
}

func (brokenListingStore) CountBooks() (int64, error) {
	return 0, errors.New("db down")
}

func TestListBooksDegradesOnFailure(t *testing.T) {
	ms := store.NewMemoryStore()
	covers, err := storage.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}
	a := New(brokenListingStore{ms}, store.NewMemorySessionStore(), covers, nil, Options{})

	page := a.ListBooks(1)
	if page.Warning == "" {
		t.Fatal("expected warning on listing failure")
	}
	if len(page.Books) != 0 || page.Page != 1 {
		t.Fatalf("expected empty degraded page, got %+v", page)
	}
}

func TestShowBook(t *testing.T) {
	a, ms := newTestApp(t, Options{})
	admin := adminUser(t, ms)
	reader := regularUser(t, ms, "reader")

	book, err := a.CreateBook(admin, BookInput{Title: "Dune"})
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	if _, err := a.AddReview(reader, book.ID, 4, "good"); err != nil {
		t.Fatalf("add review: %v", err)
	}

	view, err := a.ShowBook(book.ID, &reader.ID)
	if err != nil {
		t.Fatalf("show book: %v", err)
	}
	if view.Title != "Dune" || len(view.Reviews) != 1 || view.AvgRating != 4 {
		t.Fatalf("unexpected view: %+v", view)
	}

	if _, err := a.ShowBook(999, nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing book err = %v, want ErrNotFound", err)
	}

	// the view was queued for recording
	a.visits.drain()
	visits, err := ms.ListVisits()
	if err != nil || len(visits) != 1 {
		t.Fatalf("visits = %d err=%v, want 1", len(visits), err)
	}
	if visits[0].UserID == nil || *visits[0].UserID != reader.ID {
		t.Fatalf("visit user = %v, want %d", visits[0].UserID, reader.ID)
	}
}

func TestCreateGenre(t *testing.T) {
	a, ms := newTestApp(t, Options{})
	admin := adminUser(t, ms)
	reader := regularUser(t, ms, "reader")

	if _, err := a.CreateGenre(reader, "fiction"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("regular user create genre err = %v, want ErrForbidden", err)
	}
	if _, err := a.CreateGenre(admin, "  "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("blank genre err = %v, want ErrValidation", err)
	}
	g, err := a.CreateGenre(admin, "fiction")
	if err != nil || g.Name != "fiction" {
		t.Fatalf("create genre: %+v err=%v", g, err)
	}
	if _, err := a.CreateGenre(admin, "fiction"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate genre err = %v, want ErrConflict", err)
	}
	genres, err := a.ListGenres()
	if err != nil || len(genres) != 1 {
		t.Fatalf("list genres = %d err=%v", len(genres), err)
	}
}
