package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"insta-timetable-bot/internal/adapters/imagehost"
	"insta-timetable-bot/internal/adapters/instagram"
	"insta-timetable-bot/internal/adapters/ledger"
	"insta-timetable-bot/internal/adapters/neis"
	"insta-timetable-bot/internal/adapters/render"
	"insta-timetable-bot/internal/domain"
	"insta-timetable-bot/internal/infra/cache"
	"insta-timetable-bot/internal/infra/config"
	httpinfra "insta-timetable-bot/internal/infra/http"
	logpkg "insta-timetable-bot/internal/infra/log"
	"insta-timetable-bot/internal/infra/metrics"
	"insta-timetable-bot/internal/usecase/evaluate"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logpkg.NewLogger(cfg.AppEnv)

	root := &cobra.Command{
		Use:           "timetable-bot",
		Short:         "Ежедневная публикация школьного расписания в Instagram",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newDaemonCmd(cfg, logger),
		newRunCmd(cfg, logger),
		newUpdateCmd(cfg, logger),
		newClassesCmd(cfg, logger),
		newCheckCmd(cfg, logger),
	)

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("команда завершилась с ошибкой")
		os.Exit(1)
	}
}

// app — собранный граф зависимостей процесса.
type app struct {
	cfg     config.AppConfig
	log     zerolog.Logger
	loc     *time.Location
	fetcher *neis.Client
	cache   domain.Cache
	service *evaluate.Service
	close   func()
}

func newApp(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*app, error) {
	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		return nil, fmt.Errorf("часовой пояс %q: %w", cfg.TZ, err)
	}

	normalizer := neis.NewNormalizer(cfg.NEIS.SubjectAliases, cfg.NEIS.SubjectAliasesPath, logger)
	fetcher, err := neis.New(cfg.NEIS.BaseURL, cfg.NEIS.Key, normalizer, logger,
		neis.WithRetry(cfg.Retry.Attempts, cfg.Retry.BaseDelay))
	if err != nil {
		return nil, fmt.Errorf("клиент NEIS: %w", err)
	}

	tokens := instagram.NewTokenManager(instagram.TokenConfig{
		GraphBaseURL:         cfg.Instagram.GraphBaseURL,
		PageAccessToken:      cfg.Instagram.PageAccessToken,
		BusinessID:           cfg.Instagram.BusinessID,
		UserAccessToken:      cfg.Instagram.UserAccessToken,
		PageID:               cfg.Instagram.PageID,
		AppID:                cfg.Instagram.AppID,
		AppSecret:            cfg.Instagram.AppSecret,
		RefreshThresholdDays: cfg.Instagram.RefreshThresholdDays,
	}, cfg.State.TokenPath, logger, nil)
	publisher := instagram.New(cfg.Instagram.GraphBaseURL, tokens, logger,
		instagram.WithTestMode(cfg.Instagram.TestMode),
		instagram.WithAppSecret(cfg.Instagram.AppSecret),
		instagram.WithRetry(cfg.Retry.Attempts, cfg.Retry.BaseDelay))

	renderer := render.New(render.Options{
		BrandColor:  cfg.Image.BrandColor,
		SchoolName:  cfg.School.Name,
		Grade:       cfg.School.Grade,
		Class:       cfg.School.Class,
		FontRegular: cfg.Image.FontRegular,
		FontBold:    cfg.Image.FontBold,
	}, logger)

	host, err := imagehost.New(cfg.Image.URLTemplate, cfg.Image.UploadURL, logger)
	if errors.Is(err, imagehost.ErrNotConfigured) && cfg.Instagram.TestMode {
		// В сухом прогоне публикации никуда не уходят, URL нужен только для логов.
		logger.Warn().Msg("хост изображений не настроен, в тестовом режиме используется заглушка")
		host = imagehost.NewTemplate("https://example.com/placeholder/{basename}")
	} else if err != nil {
		return nil, err
	}

	closeFns := make([]func(), 0, 2)
	var store domain.Ledger
	if cfg.State.PGDSN != "" {
		pg, err := ledger.NewPostgres(ctx, cfg.State.PGDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("журнал в Postgres: %w", err)
		}
		closeFns = append(closeFns, pg.Close)
		store = pg
	} else {
		store = ledger.NewFile(cfg.State.LedgerPath, logger)
	}

	opts := []evaluate.Option{}
	var sharedCache domain.Cache
	if cfg.RedisAddr != "" {
		sharedCache = cache.NewRedis(cfg.RedisAddr)
		opts = append(opts, evaluate.WithCache(sharedCache))
	}

	service := evaluate.New(fetcher, renderer, publisher, host, store, evaluate.Profile{
		SchoolName:  cfg.School.Name,
		SchoolLevel: cfg.School.Level,
		Grade:       cfg.School.Grade,
		Class:       cfg.School.Class,
		Year:        cfg.School.Year,
		Semester:    cfg.School.Semester,
	}, cfg.Image.OutDir, loc, logger, opts...)

	return &app{
		cfg:     cfg,
		log:     logger,
		loc:     loc,
		fetcher: fetcher,
		cache:   sharedCache,
		service: service,
		close: func() {
			for _, fn := range closeFns {
				fn()
			}
		},
	}, nil
}

func (a *app) today() string {
	return time.Now().In(a.loc).Format("20060102")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newRunCmd(cfg config.AppConfig, logger zerolog.Logger) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Выполнить одну оценку дня (публикация при необходимости)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()
			return a.service.Run(ctx, a.resolveDate(date))
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "дата YYYYMMDD (по умолчанию сегодня)")
	return cmd
}

func newUpdateCmd(cfg config.AppConfig, logger zerolog.Logger) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Повторная проверка дня: правка при расхождении, скип без поста",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()
			return a.service.Update(ctx, a.resolveDate(date))
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "дата YYYYMMDD (по умолчанию сегодня)")
	return cmd
}

func (a *app) resolveDate(date string) string {
	if date == "" {
		return a.today()
	}
	return date
}

func newDaemonCmd(cfg config.AppConfig, logger zerolog.Logger) *cobra.Command {
	var runNow bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Планировщик: ежедневная публикация в POST_TIME + HTTP и метрики",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()
			return a.runDaemon(ctx, runNow)
		},
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "выполнить оценку сразу при старте")
	return cmd
}

func (a *app) runDaemon(ctx context.Context, runNow bool) error {
	metrics.MustRegister(prometheus.DefaultRegisterer)
	metrics.StartServer(ctx, a.log, a.cfg.MetricsAddr)

	srv := httpinfra.NewServer(a.log, a.cfg.Image.OutDir)
	go func() {
		if err := srv.Start(a.cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Msg("http: сервер остановился")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error().Err(err).Msg("http: остановка не удалась")
		}
	}()

	a.log.Info().
		Str("tz", a.cfg.TZ).
		Str("post_time", a.cfg.PostTime).
		Msg("планировщик запущен")

	var lastDate string
	if runNow {
		lastDate = a.fireDaily(ctx)
	}

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("планировщик остановлен")
			return nil
		case <-ticker.C:
			now := time.Now().In(a.loc)
			if now.Format("15:04") < a.cfg.PostTime || lastDate == now.Format("20060102") {
				continue
			}
			lastDate = a.fireDaily(ctx)
		}
	}
}

// fireDaily выполняет одну оценку дня. Ошибки логируются, но не роняют
// планировщик: следующая попытка произойдёт на другую дату или через update.
func (a *app) fireDaily(ctx context.Context) string {
	ymd := a.today()
	job := func() error { return a.service.Run(ctx, ymd) }

	var err error
	if a.cache != nil {
		// Замок в Redis защищает от двойного срабатывания при рестартах
		// и от второй реплики процесса.
		err = a.cache.Once(ctx, "daily:"+ymd, 24*time.Hour, job)
	} else {
		err = job()
	}
	if err != nil {
		a.log.Error().Err(err).Str("date", ymd).Msg("ежедневная оценка не удалась")
	}
	return ymd
}

func newClassesCmd(cfg config.AppConfig, logger zerolog.Logger) *cobra.Command {
	var grade int
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "Список классов школы из справочника NEIS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			codes, err := a.fetcher.FindSchool(ctx, cfg.School.Name)
			if err != nil {
				return err
			}
			classes, err := a.fetcher.ListClasses(ctx, codes, cfg.School.Year, grade)
			if err != nil {
				return err
			}
			cmd.Printf("%s (%s)\n", codes.SchoolName, codes.RegionName)
			for _, c := range classes {
				cmd.Printf("- 반: %s  (학년도: %s)\n", c.Class, c.Year)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&grade, "grade", cfg.School.Grade, "학년 (параллель)")
	return cmd
}

func newCheckCmd(cfg config.AppConfig, logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Проверка доступности NEIS: поиск школы и расписание на сегодня",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			codes, err := a.fetcher.FindSchool(ctx, cfg.School.Name)
			if err != nil {
				return err
			}
			cmd.Printf("школа: %s  регион: %s (%s)  код: %s\n",
				codes.SchoolName, codes.RegionName, codes.RegionCode, codes.SchoolCode)

			ymd := a.today()
			snap, err := a.fetcher.Timetable(ctx, domain.TimetableQuery{
				SchoolLevel: cfg.School.Level,
				RegionCode:  codes.RegionCode,
				SchoolCode:  codes.SchoolCode,
				Date:        ymd,
				Grade:       cfg.School.Grade,
				Class:       cfg.School.Class,
				Year:        cfg.School.Year,
				Semester:    cfg.School.Semester,
			})
			if err != nil {
				return err
			}
			cmd.Printf("дата: %s, уроков: %d\n", ymd, len(snap.Periods))
			for _, p := range snap.Periods {
				cmd.Printf("  %d교시  %s  %s\n", p.Number, p.Subject, p.Room)
			}
			return nil
		},
	}
}
