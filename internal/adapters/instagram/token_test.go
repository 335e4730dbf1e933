package instagram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestCredentialsFixedMode(t *testing.T) {
	m := NewTokenManager(TokenConfig{
		PageAccessToken: "fixed-token",
		BusinessID:      "ig42",
	}, filepath.Join(t.TempDir(), "token.json"), zerolog.Nop(), nil)

	token, igID, err := m.Credentials(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if token != "fixed-token" || igID != "ig42" {
		t.Fatalf("фиксированные учётные данные искажены: %s / %s", token, igID)
	}
}

func TestCredentialsMissing(t *testing.T) {
	m := NewTokenManager(TokenConfig{}, filepath.Join(t.TempDir(), "token.json"), zerolog.Nop(), nil)
	_, _, err := m.Credentials(context.Background())
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("ожидали ErrMissingCredentials, получили %v", err)
	}
}

func TestCredentialsDerivedModeWithRefresh(t *testing.T) {
	var exchanged bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/debug_token":
			// Токен истекает через день — ниже порога в 7 дней.
			fmt.Fprintf(w, `{"data": {"expires_at": %d}}`, time.Now().Add(24*time.Hour).Unix())
		case "/oauth/access_token":
			exchanged = true
			fmt.Fprint(w, `{"access_token": "long-lived-token"}`)
		case "/page77":
			if r.URL.Query().Get("fields") == "access_token" {
				fmt.Fprint(w, `{"access_token": "page-token"}`)
				return
			}
			fmt.Fprint(w, `{"instagram_business_account": {"id": "ig-biz-1"}}`)
		default:
			t.Errorf("неожиданный путь %s", r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)

	statePath := filepath.Join(t.TempDir(), "token.json")
	m := NewTokenManager(TokenConfig{
		GraphBaseURL:         srv.URL,
		UserAccessToken:      "short-lived",
		PageID:               "page77",
		AppID:                "app",
		AppSecret:            "secret",
		RefreshThresholdDays: 7,
	}, statePath, zerolog.Nop(), nil)

	token, igID, err := m.Credentials(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if token != "page-token" || igID != "ig-biz-1" {
		t.Fatalf("производные учётные данные неверны: %s / %s", token, igID)
	}
	if !exchanged {
		t.Fatalf("ожидали продление токена")
	}

	// Продлённый user-токен сохранён в состоянии.
	data, err := os.ReadFile(statePath)
	if err != nil {
		t.Fatalf("состояние не сохранено: %v", err)
	}
	if !strings.Contains(string(data), "long-lived-token") {
		t.Fatalf("в состоянии нет нового токена: %s", data)
	}
}

func TestCredentialsDerivedModeNoRefreshNeeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/debug_token":
			fmt.Fprintf(w, `{"data": {"expires_at": %d}}`, time.Now().Add(60*24*time.Hour).Unix())
		case "/oauth/access_token":
			t.Errorf("продление не должно вызываться")
		case "/page77":
			if r.URL.Query().Get("fields") == "access_token" {
				fmt.Fprint(w, `{"access_token": "page-token"}`)
				return
			}
			fmt.Fprint(w, `{"instagram_business_account": {"id": "ig-biz-1"}}`)
		}
	}))
	t.Cleanup(srv.Close)

	m := NewTokenManager(TokenConfig{
		GraphBaseURL:         srv.URL,
		UserAccessToken:      "short-lived",
		PageID:               "page77",
		AppID:                "app",
		AppSecret:            "secret",
		RefreshThresholdDays: 7,
	}, filepath.Join(t.TempDir(), "token.json"), zerolog.Nop(), nil)

	token, _, err := m.Credentials(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if token != "page-token" {
		t.Fatalf("ожидали page-token, получили %s", token)
	}
}
