package imagehost

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestTemplateHost(t *testing.T) {
	host := NewTemplate("https://cdn.example.com/tt/{ymd}/{basename}")

	got, err := host.PublicURL(context.Background(), "out/2026-03-02.jpg")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	want := "https://cdn.example.com/tt/20260302/2026-03-02.jpg"
	if got != want {
		t.Fatalf("ожидали %q, получили %q", want, got)
	}
}

func TestUploadHost(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "2026-03-02.jpg")
	if err := os.WriteFile(imagePath, []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.Write([]byte("https://files.example.com/abc.jpg\n"))
	}))
	defer srv.Close()

	host := NewUpload(srv.URL, zerolog.Nop())
	got, err := host.PublicURL(context.Background(), imagePath)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if got != "https://files.example.com/abc.jpg" {
		t.Fatalf("неверный URL: %q", got)
	}
	if gotMethod != http.MethodPut {
		t.Fatalf("ожидали PUT, получили %s", gotMethod)
	}
	if !strings.HasSuffix(gotPath, "-2026-03-02.jpg") {
		t.Fatalf("имя должно содержать исходное имя файла: %q", gotPath)
	}
}

func TestUploadHostClientError(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "x.jpg")
	if err := os.WriteFile(imagePath, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	host := NewUpload(srv.URL, zerolog.Nop())
	host.baseDelay = 0
	if _, err := host.PublicURL(context.Background(), imagePath); err == nil {
		t.Fatal("ожидали ошибку на 403")
	}
	if calls != 1 {
		t.Fatalf("4xx не должен ретраиться, вызовов: %d", calls)
	}
}

func TestNewSelection(t *testing.T) {
	if _, err := New("", "", zerolog.Nop()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("ожидали ErrNotConfigured, получили %v", err)
	}
	if host, err := New("https://x/{basename}", "https://y", zerolog.Nop()); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	} else if _, ok := host.(*TemplateHost); !ok {
		t.Fatal("шаблон должен быть приоритетнее загрузки")
	}
}
