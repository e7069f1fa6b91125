package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/newsherd/newsherd/internal/retry"
)

func TestGetDecodesLatin1(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "café" in latin-1.
		w.Write([]byte("<html><body>caf\xe9</body></html>"))
	}))
	defer srv.Close()

	page, err := New(0, retry.Config{MaxAttempts: 1}).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !strings.Contains(page.Body, "café") {
		t.Errorf("charset not decoded: %q", page.Body)
	}
}

func TestGetFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>moved</body></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page, err := New(0, retry.Config{MaxAttempts: 1}).Get(context.Background(), srv.URL+"/old")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if page.FinalURL != srv.URL+"/new" {
		t.Errorf("FinalURL = %q, want %q", page.FinalURL, srv.URL+"/new")
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("<html><body>finally</body></html>"))
	}))
	defer srv.Close()

	page, err := New(0, retry.Config{MaxAttempts: 3}).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if attempts != 3 {
		t.Errorf("server saw %d attempts, want 3", attempts)
	}
	if !strings.Contains(page.Body, "finally") {
		t.Errorf("unexpected body: %q", page.Body)
	}
}

func TestGetReportsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := New(0, retry.Config{MaxAttempts: 1}).Get(context.Background(), srv.URL); err == nil {
		t.Fatal("expected an error for a 404 response")
	}
}
