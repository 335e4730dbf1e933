package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию процесса. Значения читаются из окружения
// один раз при старте и передаются компонентам параметрами: ядро никогда не
// обращается к окружению само.
type AppConfig struct {
	AppEnv   string `envconfig:"APP_ENV" default:"dev"`
	TZ       string `envconfig:"TZ" default:"Asia/Seoul"`
	PostTime string `envconfig:"POST_TIME" default:"07:00"`

	School struct {
		Name     string `envconfig:"SCHOOL_NAME" default:"선린인터넷고등학교"`
		Level    string `envconfig:"SCHOOL_LEVEL" default:"his"`
		Grade    int    `envconfig:"GRADE" default:"3"`
		Class    string `envconfig:"CLASS_NM" default:"11"`
		Year     string `envconfig:"AY"`
		Semester string `envconfig:"SEM"`
	} `envconfig:""`

	NEIS struct {
		Key                string `envconfig:"NEIS_KEY"`
		BaseURL            string `envconfig:"NEIS_BASE_URL" default:"https://open.neis.go.kr/hub"`
		SubjectAliases     string `envconfig:"SUBJECT_ALIASES"`
		SubjectAliasesPath string `envconfig:"SUBJECT_ALIASES_PATH" default:"data/subject_aliases.json"`
	} `envconfig:""`

	Instagram struct {
		GraphBaseURL         string  `envconfig:"GRAPH_BASE_URL" default:"https://graph.facebook.com/v21.0"`
		PageAccessToken      string  `envconfig:"IG_PAGE_ACCESS_TOKEN"`
		BusinessID           string  `envconfig:"IG_BUSINESS_ID"`
		UserAccessToken      string  `envconfig:"IG_USER_ACCESS_TOKEN"`
		PageID               string  `envconfig:"PAGE_ID"`
		AppID                string  `envconfig:"FB_APP_ID"`
		AppSecret            string  `envconfig:"FB_APP_SECRET"`
		RefreshThresholdDays float64 `envconfig:"TOKEN_REFRESH_THRESHOLD_DAYS" default:"7"`
		TestMode             bool    `envconfig:"POST_TEST_MODE" default:"true"`
	} `envconfig:""`

	Image struct {
		BrandColor  string `envconfig:"BRAND_COLOR_HEX" default:"#2A6CF0"`
		OutDir      string `envconfig:"OUT_DIR" default:"out"`
		FontRegular string `envconfig:"FONT_REGULAR_PATH"`
		FontBold    string `envconfig:"FONT_BOLD_PATH"`
		URLTemplate string `envconfig:"IMAGE_URL_TEMPLATE"`
		UploadURL   string `envconfig:"IMAGE_UPLOAD_URL"`
	} `envconfig:""`

	State struct {
		LedgerPath string `envconfig:"STATE_PATH" default:"state/posted.json"`
		TokenPath  string `envconfig:"TOKEN_STATE_PATH" default:"state/token.json"`
		PGDSN      string `envconfig:"LEDGER_PG_DSN"`
	} `envconfig:""`

	Retry struct {
		Attempts  int           `envconfig:"RETRY_ATTEMPTS" default:"3"`
		BaseDelay time.Duration `envconfig:"RETRY_BASE_DELAY" default:"1s"`
	} `envconfig:""`

	RedisAddr   string `envconfig:"REDIS_ADDR"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
