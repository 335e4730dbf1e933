package render

import (
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"insta-timetable-bot/internal/domain"
)

func TestRenderProducesJPEG(t *testing.T) {
	r := New(Options{BrandColor: "#2A6CF0", Grade: 3, Class: "11"}, zerolog.Nop())
	outPath := filepath.Join(t.TempDir(), "2026-03-02.jpg")

	snap := domain.Snapshot{Date: "20260302", Periods: []domain.Period{
		{Number: 1, Subject: "수학"},
		{Number: 2, Subject: "자료구조", Room: "301"},
	}}
	got, err := r.Render("2026년 3월 2일 (월)", snap, outPath)
	if err != nil {
		t.Fatalf("неожиданная ошибка рендера: %v", err)
	}
	if got != outPath {
		t.Fatalf("ожидали путь %q, получили %q", outPath, got)
	}

	file, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("файл не создан: %v", err)
	}
	defer file.Close()
	cfg, err := jpeg.DecodeConfig(file)
	if err != nil {
		t.Fatalf("не удалось декодировать JPEG: %v", err)
	}
	if cfg.Width != canvasWidth || cfg.Height != canvasHeight {
		t.Fatalf("неверный размер холста: %dx%d", cfg.Width, cfg.Height)
	}
}

func TestRenderEmptyDay(t *testing.T) {
	r := New(Options{BrandColor: "#2A6CF0"}, zerolog.Nop())
	outPath := filepath.Join(t.TempDir(), "empty.jpg")

	if _, err := r.Render("2026년 3월 1일 (일)", domain.Snapshot{Date: "20260301"}, outPath); err != nil {
		t.Fatalf("рендер пустого дня не должен падать: %v", err)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("файл не создан: %v", err)
	}
}

func TestParseHexColorFallback(t *testing.T) {
	if parseHexColor("не цвет") == nil {
		t.Fatal("ожидали цвет по умолчанию")
	}
}
