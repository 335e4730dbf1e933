package neis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"insta-timetable-bot/internal/domain"
	"insta-timetable-bot/internal/infra/metrics"
	"insta-timetable-bot/internal/infra/retry"
)

// ErrSchoolNotFound возвращается, когда schoolInfo не знает такой школы.
var ErrSchoolNotFound = errors.New("школа не найдена в NEIS")

// Код результата NEIS при отсутствии данных: это не ошибка,
// а пустой день (выходной, каникулы).
const codeNoData = "INFO-200"

const codeOK = "INFO-000"

var timetableEndpoints = map[string]string{
	"els": "elsTimetable",
	"mis": "misTimetable",
	"his": "hisTimetable",
}

// Client — клиент открытого API NEIS.
type Client struct {
	baseURL    *url.URL
	key        string
	httpClient *http.Client
	normalizer *Normalizer
	attempts   int
	baseDelay  time.Duration
	log        zerolog.Logger
}

var _ domain.ScheduleFetcher = (*Client)(nil)

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

// WithRetry задаёт число попыток и базовую паузу для временных ошибок.
func WithRetry(attempts int, base time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.baseDelay = base
	}
}

// New создаёт клиент NEIS.
func New(baseURL, key string, normalizer *Normalizer, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if key == "" {
		return nil, errors.New("не задан ключ NEIS (NEIS_KEY)")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if normalizer == nil {
		normalizer = NewNormalizer("", "", logger)
	}
	c := &Client{
		baseURL:    parsed,
		key:        key,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		normalizer: normalizer,
		attempts:   3,
		baseDelay:  time.Second,
		log:        logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type schoolRow struct {
	RegionCode string `json:"ATPT_OFCDC_SC_CODE"`
	RegionName string `json:"ATPT_OFCDC_SC_NM"`
	SchoolCode string `json:"SD_SCHUL_CODE"`
	SchoolName string `json:"SCHUL_NM"`
	Kind       string `json:"SCHUL_KND_SC_NM"`
}

type classRow struct {
	Year  string `json:"AY"`
	Grade string `json:"GRADE"`
	Class string `json:"CLASS_NM"`
}

type timetableRow struct {
	Period     string `json:"PERIO"`
	Subject    string `json:"ITRT_CNTNT"`
	Room       string `json:"CLRM_NM"`
	RoomAlt    string `json:"CLSRM_NM"`
	RoomAlt2   string `json:"CLASSRM_NM"`
	RoomLegacy string `json:"ROOM_NM"`
	Class      string `json:"CLASS_NM"`
}

// FindSchool ищет коды школы по названию. Отсутствие школы — ошибка данных,
// не повторяется.
func (c *Client) FindSchool(ctx context.Context, name string) (domain.SchoolCodes, error) {
	params := url.Values{"SCHUL_NM": {name}}
	var rows []schoolRow
	if err := c.fetchRows(ctx, "schoolInfo", params, &rows); err != nil {
		return domain.SchoolCodes{}, err
	}
	if len(rows) == 0 {
		return domain.SchoolCodes{}, fmt.Errorf("%w: %s", ErrSchoolNotFound, name)
	}
	r := rows[0]
	return domain.SchoolCodes{
		RegionCode: r.RegionCode,
		RegionName: r.RegionName,
		SchoolCode: r.SchoolCode,
		SchoolName: r.SchoolName,
		Kind:       r.Kind,
	}, nil
}

// ListClasses возвращает справочник классов школы.
func (c *Client) ListClasses(ctx context.Context, codes domain.SchoolCodes, year string, grade int) ([]domain.ClassInfo, error) {
	params := url.Values{
		"ATPT_OFCDC_SC_CODE": {codes.RegionCode},
		"SD_SCHUL_CODE":      {codes.SchoolCode},
	}
	if year != "" {
		params.Set("AY", year)
	}
	if grade > 0 {
		params.Set("GRADE", strconv.Itoa(grade))
	}
	var rows []classRow
	if err := c.fetchRows(ctx, "classInfo", params, &rows); err != nil {
		return nil, err
	}
	classes := make([]domain.ClassInfo, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, domain.ClassInfo{Year: r.Year, Grade: r.Grade, Class: r.Class})
	}
	return classes, nil
}

// Timetable возвращает нормализованный снапшот расписания на день.
// Пустой ответ — валидный пустой снапшот.
func (c *Client) Timetable(ctx context.Context, q domain.TimetableQuery) (domain.Snapshot, error) {
	endpoint, ok := timetableEndpoints[q.SchoolLevel]
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("неизвестный уровень школы: %s", q.SchoolLevel)
	}
	params := url.Values{
		"ATPT_OFCDC_SC_CODE": {q.RegionCode},
		"SD_SCHUL_CODE":      {q.SchoolCode},
		"ALL_TI_YMD":         {q.Date},
		"GRADE":              {strconv.Itoa(q.Grade)},
		"CLASS_NM":           {q.Class},
	}
	if q.Year != "" {
		params.Set("AY", q.Year)
	}
	if q.Semester != "" {
		params.Set("SEM", q.Semester)
	}

	var rows []timetableRow
	if err := c.fetchRows(ctx, endpoint, params, &rows); err != nil {
		return domain.Snapshot{}, err
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return atoiSafe(rows[i].Period) < atoiSafe(rows[j].Period)
	})

	snap := domain.Snapshot{Date: q.Date, Periods: make([]domain.Period, 0, len(rows))}
	for _, r := range rows {
		class := r.Class
		if class == "" {
			class = q.Class
		}
		snap.Periods = append(snap.Periods, domain.Period{
			Number:  atoiSafe(r.Period),
			Subject: c.normalizer.Subject(r.Subject),
			Room:    c.normalizer.Room([]string{r.Room, r.RoomAlt, r.RoomAlt2, r.RoomLegacy}, class),
		})
	}
	return snap, nil
}

type resultHead struct {
	Code    string `json:"CODE"`
	Message string `json:"MESSAGE"`
}

// fetchRows выполняет запрос с повторами и раскладывает строки ответа в out
// (указатель на срез). Отсутствие набора данных оставляет out пустым.
func (c *Client) fetchRows(ctx context.Context, endpoint string, params url.Values, out any) error {
	q := url.Values{
		"KEY":    {c.key},
		"Type":   {"json"},
		"pIndex": {"1"},
		"pSize":  {"100"},
	}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	reqURL := c.baseURL.JoinPath(endpoint)
	reqURL.RawQuery = q.Encode()

	attempt := 0
	return retry.Do(ctx, c.attempts, c.baseDelay, func() error {
		attempt++
		err := c.doRequest(ctx, endpoint, reqURL.String(), out)
		if err != nil {
			c.log.Warn().Err(err).Str("endpoint", endpoint).Int("attempt", attempt).Msg("neis: запрос не удался")
		}
		return err
	})
}

func (c *Client) doRequest(ctx context.Context, endpoint, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return retry.Permanent(err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveNetworkRequest("neis", endpoint, start, err)
	if err != nil {
		return fmt.Errorf("neis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("neis: статус %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return retry.Permanent(fmt.Errorf("neis: статус %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("neis: чтение ответа: %w", err)
	}
	return c.decodeRows(endpoint, body, out)
}

func (c *Client) decodeRows(endpoint string, body []byte, out any) error {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return retry.Permanent(fmt.Errorf("neis: некорректный JSON: %w", err))
	}

	// Ответ без набора данных: {"RESULT": {"CODE": "INFO-200", ...}}.
	if raw, ok := payload["RESULT"]; ok {
		var res resultHead
		if err := json.Unmarshal(raw, &res); err == nil {
			if res.Code == codeNoData {
				return nil
			}
			return retry.Permanent(fmt.Errorf("neis: ошибка API %s - %s", res.Code, res.Message))
		}
	}

	raw, ok := payload[endpoint]
	if !ok {
		return nil
	}
	var sections []json.RawMessage
	if err := json.Unmarshal(raw, &sections); err != nil {
		return retry.Permanent(fmt.Errorf("neis: неожиданная форма ответа: %w", err))
	}

	for _, section := range sections {
		var withHead struct {
			Head []json.RawMessage `json:"head"`
		}
		if err := json.Unmarshal(section, &withHead); err == nil && len(withHead.Head) > 0 {
			for _, h := range withHead.Head {
				var entry struct {
					Result *resultHead `json:"RESULT"`
				}
				if err := json.Unmarshal(h, &entry); err == nil && entry.Result != nil {
					if entry.Result.Code != "" && entry.Result.Code != codeOK {
						if entry.Result.Code == codeNoData {
							return nil
						}
						return retry.Permanent(fmt.Errorf("neis: ошибка API %s - %s", entry.Result.Code, entry.Result.Message))
					}
				}
			}
			continue
		}
	}

	for _, section := range sections {
		var withRows struct {
			Row json.RawMessage `json:"row"`
		}
		if err := json.Unmarshal(section, &withRows); err == nil && len(withRows.Row) > 0 {
			if err := json.Unmarshal(withRows.Row, out); err != nil {
				return retry.Permanent(fmt.Errorf("neis: разбор строк %s: %w", endpoint, err))
			}
			return nil
		}
	}
	return nil
}

func atoiSafe(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
