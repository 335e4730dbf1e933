package domain

import (
	"context"
	"time"
)

// ScheduleFetcher получает данные из внешнего API расписаний.
type ScheduleFetcher interface {
	FindSchool(ctx context.Context, name string) (SchoolCodes, error)
	ListClasses(ctx context.Context, codes SchoolCodes, year string, grade int) ([]ClassInfo, error)
	Timetable(ctx context.Context, q TimetableQuery) (Snapshot, error)
}

// Renderer рисует изображение расписания и возвращает путь к файлу.
type Renderer interface {
	Render(dateLabel string, snap Snapshot, outPath string) (string, error)
}

// Publisher публикует пост на платформе и правит подпись существующего.
type Publisher interface {
	Publish(ctx context.Context, imageURL, caption string) (string, error)
	EditCaption(ctx context.Context, postID, caption string) error
}

// ImageHost выдаёт публичный URL для локально отрендеренного изображения.
type ImageHost interface {
	PublicURL(ctx context.Context, imagePath string) (string, error)
}

// Ledger — журнал публикаций по датам.
// Get не возвращает ошибку: повреждённое хранилище трактуется как
// отсутствие записи (fail-open), факт логируется реализацией.
type Ledger interface {
	Get(ctx context.Context, ymd string) (LedgerRecord, bool)
	Upsert(ctx context.Context, ymd string, rec LedgerRecord) error
}

// Cache используется для простых TTL-хранилищ и одноразовых замков.
type Cache interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}
