package neis

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSubjectNormalization(t *testing.T) {
	n := NewNormalizer("", "", zerolog.Nop())
	cases := map[string]string{
		"":              "-",
		"   ":           "-",
		"*수학":           "수학",
		"ㆍ국어":           "국어",
		"  영어   회화 ":    "영어 회화",
		"2d":            "2D",
		"3d":            "3D",
		"체육 이론":    "체육 이론",
		"[보강] 과학":       "보강] 과학",
		"국어":            "국어",
		"•통합사회":         "통합사회",
		"??프로그래밍":       "프로그래밍",
	}
	for raw, want := range cases {
		if got := n.Subject(raw); got != want {
			t.Fatalf("Subject(%q) = %q, ожидали %q", raw, got, want)
		}
	}
}

func TestSubjectAliasesInline(t *testing.T) {
	n := NewNormalizer(`{"프로그래밍": "웹프로그래밍", "빈값": "  "}`, "", zerolog.Nop())
	if got := n.Subject("프로그래밍"); got != "웹프로그래밍" {
		t.Fatalf("алиас не применился: %q", got)
	}
	// Пустая замена игнорируется.
	if got := n.Subject("빈값"); got != "빈값" {
		t.Fatalf("пустой алиас должен игнорироваться: %q", got)
	}
}

func TestSubjectAliasesBrokenJSON(t *testing.T) {
	n := NewNormalizer(`{битый json`, "", zerolog.Nop())
	if got := n.Subject("수학"); got != "수학" {
		t.Fatalf("битые алиасы не должны ломать нормализацию: %q", got)
	}
}

func TestRoomSelection(t *testing.T) {
	n := NewNormalizer("", "", zerolog.Nop())

	if got := n.Room([]string{"", "  ", "301", "302"}, "11"); got != "301" {
		t.Fatalf("ожидали первый непустой кабинет, получили %q", got)
	}
	if got := n.Room([]string{""}, "11"); got != "" {
		t.Fatalf("без кандидатов ожидали пустую строку, получили %q", got)
	}
}

func TestRoomSuppressedWhenEqualsClass(t *testing.T) {
	n := NewNormalizer("", "", zerolog.Nop())

	// "11반" по цифрам совпадает с номером класса 11 — это не кабинет.
	if got := n.Room([]string{"11반"}, "11"); got != "" {
		t.Fatalf("кабинет, дублирующий класс, должен подавляться: %q", got)
	}
	// "301" с классом 11 не совпадает и остаётся.
	if got := n.Room([]string{"301"}, "11"); got != "301" {
		t.Fatalf("настоящий кабинет подавлен: %q", got)
	}
	// Кабинет без цифр остаётся как есть.
	if got := n.Room([]string{"운동장"}, "11"); got != "운동장" {
		t.Fatalf("кабинет без цифр должен сохраняться: %q", got)
	}
}
