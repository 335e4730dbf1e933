package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Fingerprint возвращает sha256-отпечаток канонической сериализации снапшота.
// Одинаковые по содержанию снапшоты дают байт-в-байт одинаковый отпечаток;
// любая разница в числе, порядке, предмете или кабинете уроков меняет его.
func Fingerprint(snap Snapshot) string {
	sum := sha256.Sum256([]byte(canonicalPayload(snap)))
	return hex.EncodeToString(sum[:])
}

// canonicalPayload сериализует снапшот так же, как прежний процесс:
// json.dumps(..., ensure_ascii=False, sort_keys=True) — ключи объектов по
// алфавиту, разделители ", " и ": ", не-ASCII символы без экранирования.
// Порядок уроков входит в полезную нагрузку, порядок ключей — нет.
func canonicalPayload(snap Snapshot) string {
	var b strings.Builder
	b.WriteString(`{"date": `)
	writeJSONString(&b, snap.Date)
	b.WriteString(`, "timetable": [`)
	for i, p := range snap.Periods {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(`{"period": `)
		b.WriteString(strconv.Itoa(p.Number))
		b.WriteString(`, "room": `)
		writeJSONString(&b, p.Room)
		b.WriteString(`, "subject": `)
		writeJSONString(&b, p.Subject)
		b.WriteByte('}')
	}
	b.WriteString("]}")
	return b.String()
}

func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
