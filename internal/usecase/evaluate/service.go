package evaluate

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"insta-timetable-bot/internal/domain"
	"insta-timetable-bot/internal/infra/metrics"
)

const schoolCodesTTL = 7 * 24 * time.Hour

// Profile — школа и класс, для которых строится расписание.
type Profile struct {
	SchoolName  string
	SchoolLevel string
	Grade       int
	Class       string
	Year        string
	Semester    string
}

// Option настраивает сервис.
type Option func(*Service)

// WithCache подключает кэш кодов школы (опционально).
func WithCache(cache domain.Cache) Option {
	return func(s *Service) { s.cache = cache }
}

// Service — оркестратор ежедневной публикации и публикации правок.
type Service struct {
	fetcher   domain.ScheduleFetcher
	renderer  domain.Renderer
	publisher domain.Publisher
	host      domain.ImageHost
	ledger    domain.Ledger
	cache     domain.Cache

	profile Profile
	outDir  string
	loc     *time.Location
	log     zerolog.Logger
}

// New создаёт оркестратор.
func New(
	fetcher domain.ScheduleFetcher,
	renderer domain.Renderer,
	publisher domain.Publisher,
	host domain.ImageHost,
	ledger domain.Ledger,
	profile Profile,
	outDir string,
	loc *time.Location,
	logger zerolog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		fetcher:   fetcher,
		renderer:  renderer,
		publisher: publisher,
		host:      host,
		ledger:    ledger,
		profile:   profile,
		outDir:    outDir,
		loc:       loc,
		log:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run выполняет одну оценку дня: получает расписание, сверяет отпечаток с
// журналом и в зависимости от решения публикует пост, правку или ничего.
// Запись в журнал происходит строго после успешной публикации.
func (s *Service) Run(ctx context.Context, ymd string) error {
	start := time.Now()
	outcome := "error"
	defer func() { metrics.ObserveEvaluation(outcome, start) }()

	snap, err := s.fetchSnapshot(ctx, ymd)
	if err != nil {
		return err
	}

	fingerprint := domain.Fingerprint(snap)
	rec, exists := s.ledger.Get(ctx, ymd)
	decision := domain.Decide(rec, exists, fingerprint)
	outcome = decision.String()

	dateLabel, err := s.dateLabel(ymd)
	if err != nil {
		outcome = "error"
		return err
	}

	switch decision {
	case domain.DecisionNoChange:
		s.log.Info().Str("date", ymd).Msg("изменений нет, публикация не требуется")
		return nil
	case domain.DecisionFirstPost:
		if err := s.publishFirst(ctx, ymd, dateLabel, snap, fingerprint); err != nil {
			outcome = "error"
			return err
		}
		return nil
	case domain.DecisionCorrection:
		if err := s.publishCorrection(ctx, ymd, dateLabel, snap, fingerprint, rec); err != nil {
			outcome = "error"
			return err
		}
		return nil
	default:
		outcome = "error"
		return fmt.Errorf("неизвестное решение: %v", decision)
	}
}

// Update — точка входа повторной проверки: если за дату ещё не было поста,
// ничего не публикует (первичная публикация — только через Run).
func (s *Service) Update(ctx context.Context, ymd string) error {
	if _, exists := s.ledger.Get(ctx, ymd); !exists {
		s.log.Info().Str("date", ymd).Msg("за дату нет публикации, повторная проверка пропущена")
		return nil
	}
	return s.Run(ctx, ymd)
}

func (s *Service) fetchSnapshot(ctx context.Context, ymd string) (domain.Snapshot, error) {
	codes, err := s.schoolCodes(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("поиск школы: %w", err)
	}
	snap, err := s.fetcher.Timetable(ctx, domain.TimetableQuery{
		SchoolLevel: s.profile.SchoolLevel,
		RegionCode:  codes.RegionCode,
		SchoolCode:  codes.SchoolCode,
		Date:        ymd,
		Grade:       s.profile.Grade,
		Class:       s.profile.Class,
		Year:        s.profile.Year,
		Semester:    s.profile.Semester,
	})
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("получение расписания: %w", err)
	}
	return snap, nil
}

// schoolCodes ищет коды школы, при наличии кэша — через него.
// Ошибки кэша не фатальны: поиск просто идёт в источник.
func (s *Service) schoolCodes(ctx context.Context) (domain.SchoolCodes, error) {
	key := "neis:school:" + s.profile.SchoolName
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var codes domain.SchoolCodes
			if err := json.Unmarshal(data, &codes); err == nil && codes.SchoolCode != "" {
				return codes, nil
			}
		}
	}

	codes, err := s.fetcher.FindSchool(ctx, s.profile.SchoolName)
	if err != nil {
		return domain.SchoolCodes{}, err
	}
	if s.cache != nil {
		if data, err := json.Marshal(codes); err == nil {
			if err := s.cache.Set(ctx, key, data, schoolCodesTTL); err != nil {
				s.log.Warn().Err(err).Msg("не удалось сохранить коды школы в кэш")
			}
		}
	}
	return codes, nil
}

func (s *Service) publishFirst(ctx context.Context, ymd, dateLabel string, snap domain.Snapshot, fingerprint string) error {
	imageURL, err := s.prepareImage(ctx, dateLabel, snap, filepath.Join(s.outDir, ymd+".jpg"))
	if err != nil {
		return err
	}

	caption := BuildCaption(dateLabel, snap, s.profile.SchoolName, s.profile.Grade, s.profile.Class)
	postID, err := s.publisher.Publish(ctx, imageURL, caption)
	if err != nil {
		metrics.PublishErrors.Inc()
		return fmt.Errorf("публикация поста: %w", err)
	}

	rec := domain.LedgerRecord{PostID: postID, Fingerprint: fingerprint}
	if err := s.ledger.Upsert(ctx, ymd, rec); err != nil {
		return fmt.Errorf("запись в журнал: %w", err)
	}
	s.log.Info().Str("date", ymd).Str("post_id", postID).Msg("пост опубликован")
	return nil
}

// publishCorrection публикует пост-правку и best-effort дописывает ссылку
// на него в подпись оригинала. Журнал сохраняет id ОРИГИНАЛЬНОГО поста
// с новым отпечатком.
func (s *Service) publishCorrection(ctx context.Context, ymd, dateLabel string, snap domain.Snapshot, fingerprint string, original domain.LedgerRecord) error {
	imageURL, err := s.prepareImage(ctx, dateLabel+" (업데이트)", snap, filepath.Join(s.outDir, ymd+"_upd.jpg"))
	if err != nil {
		return err
	}

	caption := BuildCorrectionCaption(dateLabel, s.profile.SchoolName, s.profile.Grade, s.profile.Class)
	correctionID, err := s.publisher.Publish(ctx, imageURL, caption)
	if err != nil {
		metrics.PublishErrors.Inc()
		return fmt.Errorf("публикация правки: %w", err)
	}

	if err := s.publisher.EditCaption(ctx, original.PostID, BuildAnnotation(correctionID)); err != nil {
		metrics.CaptionEditFailures.Inc()
		s.log.Warn().Err(err).Str("post_id", original.PostID).Msg("не удалось дописать подпись оригинала")
	}

	rec := domain.LedgerRecord{PostID: original.PostID, Fingerprint: fingerprint}
	if err := s.ledger.Upsert(ctx, ymd, rec); err != nil {
		return fmt.Errorf("запись в журнал: %w", err)
	}
	s.log.Info().
		Str("date", ymd).
		Str("original_post_id", original.PostID).
		Str("correction_post_id", correctionID).
		Msg("правка опубликована")
	return nil
}

func (s *Service) prepareImage(ctx context.Context, dateLabel string, snap domain.Snapshot, outPath string) (string, error) {
	imagePath, err := s.renderer.Render(dateLabel, snap, outPath)
	if err != nil {
		return "", fmt.Errorf("рендер изображения: %w", err)
	}
	imageURL, err := s.host.PublicURL(ctx, imagePath)
	if err != nil {
		return "", fmt.Errorf("публичный URL изображения: %w", err)
	}
	return imageURL, nil
}

func (s *Service) dateLabel(ymd string) (string, error) {
	t, err := time.ParseInLocation("20060102", ymd, s.loc)
	if err != nil {
		return "", fmt.Errorf("разбор даты %q: %w", ymd, err)
	}
	return FormatDateKR(t), nil
}
