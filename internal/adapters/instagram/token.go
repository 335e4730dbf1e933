package instagram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"insta-timetable-bot/internal/infra/metrics"
)

// ErrMissingCredentials возвращается, когда не задан ни фиксированный, ни
// производный набор учётных данных.
var ErrMissingCredentials = errors.New("нет учётных данных Instagram: задайте IG_PAGE_ACCESS_TOKEN+IG_BUSINESS_ID или IG_USER_ACCESS_TOKEN+PAGE_ID")

// TokenConfig — параметры получения токена.
type TokenConfig struct {
	GraphBaseURL         string
	PageAccessToken      string // фиксированный режим
	BusinessID           string
	UserAccessToken      string // производный режим
	PageID               string
	AppID                string
	AppSecret            string
	RefreshThresholdDays float64
}

// TokenManager выдаёт действующие учётные данные для публикаций.
// Фиксированный режим возвращает их как есть; производный режим строит
// page-токен и id бизнес-аккаунта из user-токена и при приближении срока
// истечения продлевает user-токен, сохраняя его в файл состояния.
type TokenManager struct {
	cfg        TokenConfig
	statePath  string
	httpClient *http.Client
	log        zerolog.Logger
	mu         sync.Mutex
}

var _ CredentialsProvider = (*TokenManager)(nil)

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(cfg TokenConfig, statePath string, logger zerolog.Logger, httpClient *http.Client) *TokenManager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.RefreshThresholdDays <= 0 {
		cfg.RefreshThresholdDays = 7
	}
	return &TokenManager{cfg: cfg, statePath: statePath, httpClient: httpClient, log: logger}
}

type tokenState struct {
	UserToken string `json:"user_token"`
}

// Credentials реализует CredentialsProvider.
func (m *TokenManager) Credentials(ctx context.Context) (string, string, error) {
	if m.cfg.PageAccessToken != "" && m.cfg.BusinessID != "" {
		return m.cfg.PageAccessToken, m.cfg.BusinessID, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.loadState()
	userToken := state.UserToken
	if userToken == "" {
		userToken = m.cfg.UserAccessToken
	}
	if userToken == "" || m.cfg.PageID == "" {
		return "", "", ErrMissingCredentials
	}

	userToken = m.maybeRefresh(ctx, userToken)

	pageToken, err := m.pageToken(ctx, userToken)
	if err != nil {
		return "", "", fmt.Errorf("получение page-токена: %w", err)
	}
	igUserID, err := m.igBusinessID(ctx, userToken)
	if err != nil {
		return "", "", fmt.Errorf("получение id бизнес-аккаунта: %w", err)
	}
	if pageToken == "" || igUserID == "" {
		return "", "", errors.New("не удалось вывести page-токен или id бизнес-аккаунта: проверьте связку PAGE_ID и права токена")
	}
	return pageToken, igUserID, nil
}

// maybeRefresh продлевает user-токен, когда до истечения осталось меньше
// порога. Любая ошибка здесь не фатальна: работаем со старым токеном.
func (m *TokenManager) maybeRefresh(ctx context.Context, userToken string) string {
	if m.cfg.AppID == "" || m.cfg.AppSecret == "" {
		return userToken
	}

	expiresAt, err := m.debugTokenExpiry(ctx, userToken)
	if err != nil {
		m.log.Warn().Err(err).Msg("instagram: проверка срока токена не удалась")
		return userToken
	}
	if expiresAt == 0 {
		return userToken
	}

	daysLeft := time.Until(time.Unix(expiresAt, 0)).Hours() / 24
	if daysLeft >= m.cfg.RefreshThresholdDays {
		return userToken
	}

	refreshed, err := m.exchangeLongLived(ctx, userToken)
	if err != nil || refreshed == "" {
		m.log.Warn().Err(err).Msg("instagram: продление токена не удалось")
		return userToken
	}
	m.saveState(tokenState{UserToken: refreshed})
	m.log.Info().Float64("days_left", daysLeft).Msg("instagram: user-токен продлён")
	return refreshed
}

func (m *TokenManager) debugTokenExpiry(ctx context.Context, userToken string) (int64, error) {
	params := url.Values{
		"input_token":  {userToken},
		"access_token": {m.cfg.AppID + "|" + m.cfg.AppSecret},
	}
	var out struct {
		Data struct {
			ExpiresAt int64 `json:"expires_at"`
		} `json:"data"`
	}
	if err := m.getJSON(ctx, "debug_token", m.cfg.GraphBaseURL+"/debug_token", params, &out); err != nil {
		return 0, err
	}
	return out.Data.ExpiresAt, nil
}

func (m *TokenManager) exchangeLongLived(ctx context.Context, userToken string) (string, error) {
	params := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {m.cfg.AppID},
		"client_secret":     {m.cfg.AppSecret},
		"fb_exchange_token": {userToken},
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := m.getJSON(ctx, "exchange_token", m.cfg.GraphBaseURL+"/oauth/access_token", params, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

func (m *TokenManager) pageToken(ctx context.Context, userToken string) (string, error) {
	params := url.Values{
		"fields":       {"access_token"},
		"access_token": {userToken},
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := m.getJSON(ctx, "page_token", m.cfg.GraphBaseURL+"/"+m.cfg.PageID, params, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

func (m *TokenManager) igBusinessID(ctx context.Context, userToken string) (string, error) {
	params := url.Values{
		"fields":       {"instagram_business_account{id}"},
		"access_token": {userToken},
	}
	var out struct {
		InstagramBusinessAccount struct {
			ID string `json:"id"`
		} `json:"instagram_business_account"`
	}
	if err := m.getJSON(ctx, "ig_business_id", m.cfg.GraphBaseURL+"/"+m.cfg.PageID, params, &out); err != nil {
		return "", err
	}
	return out.InstagramBusinessAccount.ID, nil
}

func (m *TokenManager) getJSON(ctx context.Context, operation, rawURL string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	start := time.Now()
	resp, err := m.httpClient.Do(req)
	metrics.ObserveNetworkRequest("instagram", operation, start, err)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("graph api: статус %d: %s", resp.StatusCode, truncateBody(body))
	}
	return json.Unmarshal(body, out)
}

func (m *TokenManager) loadState() tokenState {
	var state tokenState
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if !os.IsNotExist(err) {
			m.log.Warn().Err(err).Msg("instagram: состояние токена не прочитано")
		}
		return state
	}
	if err := json.Unmarshal(data, &state); err != nil {
		m.log.Warn().Err(err).Msg("instagram: состояние токена повреждено")
		return tokenState{}
	}
	return state
}

func (m *TokenManager) saveState(state tokenState) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		m.log.Warn().Err(err).Msg("instagram: состояние токена не сериализовано")
		return
	}
	if dir := filepath.Dir(m.statePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			m.log.Warn().Err(err).Msg("instagram: каталог состояния не создан")
			return
		}
	}
	if err := os.WriteFile(m.statePath, data, 0o600); err != nil {
		m.log.Warn().Err(err).Msg("instagram: состояние токена не сохранено")
	}
}
