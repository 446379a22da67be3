package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"bookery/internal/app"
	"bookery/pkg/domain"
	"bookery/pkg/storage"
	"bookery/pkg/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	covers, err := storage.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}
	a := app.New(ms, store.NewMemorySessionStore(), covers, app.NewVisitRecorder(ms), app.Options{})
	srv, err := New(Config{App: a})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, ms
}

func seedAdmin(t *testing.T, ms *store.MemoryStore) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("adminpw"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := ms.CreateUser(domain.User{Login: "admin", PasswordHash: string(hash), Role: domain.RoleAdmin}); err != nil {
		t.Fatalf("create admin: %v", err)
	}
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func loginAs(t *testing.T, ts *httptest.Server, login, password string) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{
		"login": login, "password": password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var body struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &body)
	return body.Token
}

func TestSignupLoginFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/auth/signup", "", map[string]string{
		"login": "reader", "password": "pw", "firstName": "Jane",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d", resp.StatusCode)
	}
	var created struct {
		Token string      `json:"token"`
		User  domain.User `json:"user"`
	}
	decodeBody(t, resp, &created)
	if created.Token == "" || created.User.Role != domain.RoleUser {
		t.Fatalf("unexpected signup response: %+v", created)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/auth/signup", "", map[string]string{
		"login": "reader", "password": "pw",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{
		"login": "reader", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	token := loginAs(t, ts, "reader", "pw")
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/users/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d", resp.StatusCode)
	}
	var me domain.User
	decodeBody(t, resp, &me)
	if me.Login != "reader" {
		t.Fatalf("me login = %q", me.Login)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/auth/logout", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/users/me", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestBookEndpointsAuthorization(t *testing.T) {
	ts, ms := newTestServer(t)
	seedAdmin(t, ms)

	book := map[string]any{"title": "Dune"}
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/books", "", book)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous create status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/auth/signup", "", map[string]string{"login": "reader", "password": "pw"})
	var signedUp struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &signedUp)
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/books", signedUp.Token, book)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("regular user create status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	adminToken := loginAs(t, ts, "admin", "adminpw")
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/books", adminToken, book)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin create status = %d, want 201", resp.StatusCode)
	}
	var createdBook domain.Book
	decodeBody(t, resp, &createdBook)
	if createdBook.ID == 0 || createdBook.Title != "Dune" {
		t.Fatalf("unexpected created book: %+v", createdBook)
	}

	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/books/%d", ts.URL, createdBook.ID), signedUp.Token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("regular user delete status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestBookListingAndShow(t *testing.T) {
	ts, ms := newTestServer(t)
	seedAdmin(t, ms)
	adminToken := loginAs(t, ts, "admin", "adminpw")

	for i := 0; i < 12; i++ {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/books", adminToken, map[string]any{
			"title": fmt.Sprintf("Book %d", i), "year": 2000 + i,
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create book %d status = %d", i, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/books?page=2", "", nil)
	var page app.BookPage
	decodeBody(t, resp, &page)
	if page.Total != 12 || page.TotalPages != 2 || len(page.Books) != 2 {
		t.Fatalf("page 2 = total %d pages %d len %d", page.Total, page.TotalPages, len(page.Books))
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/books/1", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("show status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/books/999", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing book status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/books/not-a-number", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("bad id status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestReviewEndpoint(t *testing.T) {
	ts, ms := newTestServer(t)
	seedAdmin(t, ms)
	adminToken := loginAs(t, ts, "admin", "adminpw")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/books", adminToken, map[string]any{"title": "Dune"})
	var book domain.Book
	decodeBody(t, resp, &book)

	reviewURL := fmt.Sprintf("%s/api/books/%d/reviews", ts.URL, book.ID)
	resp = doJSON(t, http.MethodPost, reviewURL, "", map[string]any{"rating": 5, "text": "great"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous review status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/auth/signup", "", map[string]string{"login": "reader", "password": "pw"})
	var signedUp struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &signedUp)

	resp = doJSON(t, http.MethodPost, reviewURL, signedUp.Token, map[string]any{"rating": 5, "text": "**great**"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("review status = %d, want 201", resp.StatusCode)
	}
	var review domain.Review
	decodeBody(t, resp, &review)
	if !strings.Contains(review.Text, "<strong>great</strong>") {
		t.Fatalf("review text = %q, want rendered markdown", review.Text)
	}

	resp = doJSON(t, http.MethodPost, reviewURL, signedUp.Token, map[string]any{"rating": 3, "text": "again"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second review status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, reviewURL, signedUp.Token, map[string]any{"rating": 0})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid rating status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCoverUploadAndServe(t *testing.T) {
	ts, ms := newTestServer(t)
	seedAdmin(t, ms)
	adminToken := loginAs(t, ts, "admin", "adminpw")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("title", "Dune"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	fw, err := mw.CreateFormFile("cover", "dune.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("png-bytes")); err != nil {
		t.Fatalf("write file: %v", err)
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/books", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	var book domain.Book
	decodeBody(t, resp, &book)
	if book.CoverID == nil {
		t.Fatal("expected cover id on created book")
	}

	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/covers/%d", ts.URL, *book.CoverID), "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cover status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("cover content type = %q", ct)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(data) != "png-bytes" {
		t.Fatalf("cover bytes = %q", data)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/covers/999", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing cover status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAdminEndpoints(t *testing.T) {
	ts, ms := newTestServer(t)
	seedAdmin(t, ms)
	adminToken := loginAs(t, ts, "admin", "adminpw")

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/admin/user-actions", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous stats status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/auth/signup", "", map[string]string{"login": "reader", "password": "pw"})
	var signedUp struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &signedUp)
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/admin/user-actions", signedUp.Token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("regular user stats status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/admin/user-actions", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin stats status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// unparseable dates are ignored, not rejected
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/admin/book-stats?from=bad-date", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bad date status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/admin/exports/visits", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("export content type = %q", ct)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !bytes.HasPrefix(data, []byte("\xef\xbb\xbf")) {
		t.Fatal("export should start with a UTF-8 BOM")
	}
	if !strings.Contains(string(data), "Visit ID,User,Book ID,Visit Time") {
		t.Fatalf("export header missing: %q", data)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := doJSON(t, http.MethodDelete, ts.URL+"/api/auth/login", "", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRequestIDHeaderOnResponses(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := doJSON(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	defer resp.Body.Close()
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected security headers")
	}
}
