package neis

import (
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Символы, которые источник иногда приклеивает к началу названия предмета.
const leadingMarks = "*?-–—•·[](){}ㆍ"

// Normalizer приводит строки из NEIS к виду, пригодному для отпечатка и
// картинки: одинаковый по смыслу предмет обязан давать одинаковую строку.
type Normalizer struct {
	aliases map[string]string
}

// NewNormalizer собирает нормализатор. Алиасы предметов берутся из inline
// JSON (приоритет) или из файла; ошибки разбора не фатальны.
func NewNormalizer(inlineJSON, filePath string, logger zerolog.Logger) *Normalizer {
	aliases := map[string]string{}
	if inlineJSON != "" {
		if err := json.Unmarshal([]byte(inlineJSON), &aliases); err != nil {
			logger.Warn().Err(err).Msg("neis: алиасы предметов из окружения не разобраны")
			aliases = map[string]string{}
		}
	}
	if len(aliases) == 0 && filePath != "" {
		if data, err := os.ReadFile(filePath); err == nil {
			if err := json.Unmarshal(data, &aliases); err != nil {
				logger.Warn().Err(err).Str("path", filePath).Msg("neis: файл алиасов предметов не разобран")
				aliases = map[string]string{}
			}
		}
	}
	return &Normalizer{aliases: aliases}
}

// Subject нормализует название предмета. Пустое или неизвестное название
// сводится к каноническому плейсхолдеру "-".
func (n *Normalizer) Subject(raw string) string {
	if raw == "" {
		return "-"
	}
	s := strings.TrimSpace(raw)
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return strings.ContainsRune(leadingMarks, r) || r == ' ' || r == '\t' || r == ' '
	})
	s = strings.Join(strings.Fields(strings.ReplaceAll(s, " ", " ")), " ")
	if s == "" {
		return "-"
	}

	switch strings.ToLower(s) {
	case "2d":
		s = "2D"
	case "3d":
		s = "3D"
	}

	if repl, ok := n.aliases[s]; ok {
		if trimmed := strings.TrimSpace(repl); trimmed != "" {
			return trimmed
		}
	}
	return s
}

// Room выбирает первый непустой кабинет из кандидатов и подавляет значение,
// когда оно дублирует номер класса, а не обозначает настоящий кабинет.
func (n *Normalizer) Room(candidates []string, class string) string {
	room := ""
	for _, c := range candidates {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			room = trimmed
			break
		}
	}
	if room == "" {
		return ""
	}
	if d := digits(room); d != "" && d == digits(class) {
		return ""
	}
	return room
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
