package ledger

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"insta-timetable-bot/internal/domain"
	"insta-timetable-bot/internal/infra/metrics"
)

// FileLedger хранит журнал публикаций в одном JSON-файле:
// карта YYYYMMDD → запись. Файл читается целиком и переписывается целиком
// на каждом upsert; объём записи — одна оценка в день.
type FileLedger struct {
	path string
	log  zerolog.Logger
	mu   sync.Mutex
}

var _ domain.Ledger = (*FileLedger)(nil)

// NewFile создаёт журнал по указанному пути.
func NewFile(path string, logger zerolog.Logger) *FileLedger {
	return &FileLedger{path: path, log: logger}
}

// Get возвращает запись за дату. Повреждённое или нечитаемое хранилище
// трактуется как пустой журнал: потеря истории дедупликации безопаснее,
// чем блокировка ежедневной публикации.
func (l *FileLedger) Get(_ context.Context, ymd string) (domain.LedgerRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.load()[ymd]
	return rec, ok
}

// Upsert перезаписывает запись за дату и сохраняет файл атомарно.
func (l *FileLedger) Upsert(_ context.Context, ymd string, rec domain.LedgerRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	state := l.load()
	state[ymd] = rec
	return l.save(state)
}

func (l *FileLedger) load() map[string]domain.LedgerRecord {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			metrics.LedgerReadFailures.Inc()
			l.log.Warn().Err(err).Str("path", l.path).Msg("ledger: файл состояния не прочитан, считаем журнал пустым")
		}
		return map[string]domain.LedgerRecord{}
	}
	var state map[string]domain.LedgerRecord
	if err := json.Unmarshal(data, &state); err != nil || state == nil {
		metrics.LedgerReadFailures.Inc()
		l.log.Warn().Err(err).Str("path", l.path).Msg("ledger: файл состояния повреждён, считаем журнал пустым")
		return map[string]domain.LedgerRecord{}
	}
	return state
}

// save пишет во временный файл с fsync и подменяет оригинал через rename,
// чтобы упавший процесс не оставил наполовину записанное состояние.
func (l *FileLedger) save(state map[string]domain.LedgerRecord) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := l.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err = file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, l.path)
}
