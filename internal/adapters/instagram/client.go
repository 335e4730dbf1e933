package instagram

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"insta-timetable-bot/internal/domain"
	"insta-timetable-bot/internal/infra/metrics"
	"insta-timetable-bot/internal/infra/retry"
)

// TestPostID возвращается вместо настоящего id в тестовом режиме публикации.
const TestPostID = "TEST_POST_ID"

// CredentialsProvider выдаёт действующий токен и id бизнес-аккаунта.
type CredentialsProvider interface {
	Credentials(ctx context.Context) (token, igUserID string, err error)
}

// Client публикует посты через Graph API: создание контейнера, публикация,
// правка подписи. Ошибки авторизации фатальны, транспортные повторяются.
type Client struct {
	baseURL    string
	creds      CredentialsProvider
	appSecret  string
	httpClient *http.Client
	attempts   int
	baseDelay  time.Duration
	testMode   bool
	log        zerolog.Logger
}

var _ domain.Publisher = (*Client)(nil)

// Option настраивает клиент.
type Option func(*Client)

// WithHTTPClient подменяет http.Client (в тестах).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetry задаёт число попыток и базовую паузу.
func WithRetry(attempts int, base time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.baseDelay = base
	}
}

// WithTestMode включает сухой прогон: публикации логируются, а не уходят в API.
func WithTestMode(on bool) Option {
	return func(c *Client) { c.testMode = on }
}

// WithAppSecret включает подпись appsecret_proof для всех запросов.
func WithAppSecret(secret string) Option {
	return func(c *Client) { c.appSecret = secret }
}

// New создаёт клиент Graph API.
func New(baseURL string, creds CredentialsProvider, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		creds:      creds,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		attempts:   3,
		baseDelay:  time.Second,
		log:        logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish создаёт медиа-контейнер по публичному URL изображения и публикует
// его. Возвращает id поста.
func (c *Client) Publish(ctx context.Context, imageURL, caption string) (string, error) {
	if c.testMode {
		c.log.Info().Str("image_url", imageURL).Msg("instagram: тестовый режим, публикация пропущена")
		c.log.Info().Msg("instagram: подпись поста:\n" + caption)
		return TestPostID, nil
	}

	token, igUserID, err := c.creds.Credentials(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{
		"image_url":    {imageURL},
		"caption":      {caption},
		"access_token": {token},
	}
	created, err := c.postForm(ctx, "media_create", c.baseURL+"/"+igUserID+"/media", form, token)
	if err != nil {
		return "", fmt.Errorf("создание медиа: %w", err)
	}

	publishForm := url.Values{
		"creation_id":  {created},
		"access_token": {token},
	}
	postID, err := c.postForm(ctx, "media_publish", c.baseURL+"/"+igUserID+"/media_publish", publishForm, token)
	if err != nil {
		return "", fmt.Errorf("публикация медиа: %w", err)
	}
	return postID, nil
}

// EditCaption правит подпись существующего поста.
func (c *Client) EditCaption(ctx context.Context, postID, caption string) error {
	if c.testMode {
		c.log.Info().Str("post_id", postID).Msg("instagram: тестовый режим, правка подписи пропущена:\n" + caption)
		return nil
	}

	token, _, err := c.creds.Credentials(ctx)
	if err != nil {
		return err
	}
	form := url.Values{
		"caption":      {caption},
		"access_token": {token},
	}
	_, err = c.postForm(ctx, "caption_edit", c.baseURL+"/"+postID, form, token)
	return err
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// postForm выполняет POST с повторами и возвращает поле id из ответа.
func (c *Client) postForm(ctx context.Context, operation, rawURL string, form url.Values, token string) (string, error) {
	if c.appSecret != "" && token != "" {
		form.Set("appsecret_proof", appSecretProof(c.appSecret, token))
	}

	var id string
	err := retry.Do(ctx, c.attempts, c.baseDelay, func() error {
		got, err := c.doPost(ctx, operation, rawURL, form)
		if err != nil {
			c.log.Warn().Err(err).Str("operation", operation).Msg("instagram: запрос Graph API не удался")
			return err
		}
		id = got
		return nil
	})
	return id, err
}

func (c *Client) doPost(ctx context.Context, operation, rawURL string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveNetworkRequest("instagram", operation, start, err)
	if err != nil {
		return "", fmt.Errorf("graph api request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("graph api: чтение ответа: %w", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("graph api: статус %d: %s", resp.StatusCode, truncateBody(body))
	}
	if resp.StatusCode >= 400 {
		var gerr graphError
		_ = json.Unmarshal(body, &gerr)
		if gerr.Error.Message != "" {
			return "", retry.Permanent(fmt.Errorf("graph api: %s (code=%d)", gerr.Error.Message, gerr.Error.Code))
		}
		return "", retry.Permanent(fmt.Errorf("graph api: статус %d: %s", resp.StatusCode, truncateBody(body)))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", retry.Permanent(fmt.Errorf("graph api: некорректный ответ: %w", err))
	}
	if out.ID == "" {
		return "", retry.Permanent(errors.New("graph api: в ответе нет id"))
	}
	return out.ID, nil
}

// appSecretProof — HMAC-SHA256 токена, подписанный секретом приложения.
func appSecretProof(appSecret, token string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func truncateBody(body []byte) string {
	const limit = 500
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}
