package imagehost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"insta-timetable-bot/internal/domain"
	"insta-timetable-bot/internal/infra/metrics"
	"insta-timetable-bot/internal/infra/retry"
)

// ErrNotConfigured возвращается, когда не задан ни шаблон URL, ни хост загрузки.
var ErrNotConfigured = errors.New("imagehost: не настроен способ публикации изображений")

// New выбирает реализацию: шаблон URL приоритетнее загрузки по HTTP.
func New(urlTemplate, uploadURL string, logger zerolog.Logger) (domain.ImageHost, error) {
	switch {
	case urlTemplate != "":
		return NewTemplate(urlTemplate), nil
	case uploadURL != "":
		return NewUpload(uploadURL, logger), nil
	default:
		return nil, ErrNotConfigured
	}
}

// TemplateHost подставляет путь файла в шаблон публичного URL.
// Подходит, когда каталог изображений уже раздаётся извне (nginx, S3 и т.п.).
type TemplateHost struct {
	template string
}

var _ domain.ImageHost = (*TemplateHost)(nil)

// NewTemplate создаёт хост на основе шаблона URL.
func NewTemplate(template string) *TemplateHost {
	return &TemplateHost{template: template}
}

// PublicURL строит URL заменой плейсхолдеров {path}, {basename}, {stem}, {ymd}.
func (h *TemplateHost) PublicURL(_ context.Context, imagePath string) (string, error) {
	base := filepath.Base(imagePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	pairs := strings.NewReplacer(
		"{path}", imagePath,
		"{basename}", base,
		"{stem}", stem,
		"{ymd}", strings.ReplaceAll(stem, "-", ""),
	)
	return pairs.Replace(h.template), nil
}

// UploadHost загружает файл HTTP PUT-ом на файловый хост;
// тело ответа — публичный URL изображения.
type UploadHost struct {
	baseURL    string
	httpClient *http.Client
	attempts   int
	baseDelay  time.Duration
	log        zerolog.Logger
}

var _ domain.ImageHost = (*UploadHost)(nil)

// NewUpload создаёт хост с загрузкой по HTTP.
func NewUpload(baseURL string, logger zerolog.Logger) *UploadHost {
	return &UploadHost{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		attempts:   3,
		baseDelay:  time.Second,
		log:        logger,
	}
}

// PublicURL загружает файл под случайным именем и возвращает URL из ответа.
func (h *UploadHost) PublicURL(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("чтение изображения: %w", err)
	}
	id := uuid.New()
	name := fmt.Sprintf("%x", [16]byte(id))[:8] + "-" + filepath.Base(imagePath)
	target := h.baseURL + "/" + name

	var publicURL string
	err = retry.Do(ctx, h.attempts, h.baseDelay, func() error {
		start := time.Now()
		reqErr := h.put(ctx, target, data, &publicURL)
		metrics.ObserveNetworkRequest("imagehost", "upload", start, reqErr)
		return reqErr
	})
	if err != nil {
		return "", fmt.Errorf("загрузка изображения: %w", err)
	}
	h.log.Debug().Str("url", publicURL).Msg("imagehost: изображение загружено")
	return publicURL, nil
}

func (h *UploadHost) put(ctx context.Context, target string, data []byte, publicURL *string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("файловый хост вернул %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return retry.Permanent(fmt.Errorf("файловый хост вернул %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	*publicURL = strings.TrimSpace(string(body))
	if *publicURL == "" {
		return retry.Permanent(errors.New("файловый хост вернул пустой URL"))
	}
	return nil
}
