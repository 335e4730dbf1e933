package render

import (
	"fmt"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"insta-timetable-bot/internal/domain"
)

// Холст 1080x1350 — вертикальный формат ленты.
const (
	canvasWidth  = 1080
	canvasHeight = 1350
)

var boldCandidates = []string{
	"assets/WantedSans-Bold.ttf",
	"assets/WantedSans-Bold.otf",
	"assets/NotoSansKR-Bold.ttf",
	"assets/NotoSansKR-Black.ttf",
}

var regularCandidates = []string{
	"assets/WantedSans-Regular.ttf",
	"assets/WantedSans-Regular.otf",
	"assets/NotoSansKR-Regular.ttf",
	"assets/NotoSansKR-Medium.ttf",
}

// Options — параметры оформления изображения.
type Options struct {
	BrandColor  string
	SchoolName  string
	Grade       int
	Class       string
	FontRegular string // путь из окружения, приоритетнее кандидатов
	FontBold    string
}

// ImageRenderer рисует брендированное изображение расписания.
type ImageRenderer struct {
	opts Options
	log  zerolog.Logger
}

var _ domain.Renderer = (*ImageRenderer)(nil)

// New создаёт рендерер.
func New(opts Options, logger zerolog.Logger) *ImageRenderer {
	return &ImageRenderer{opts: opts, log: logger}
}

// Render рисует расписание и сохраняет JPEG по указанному пути.
func (r *ImageRenderer) Render(dateLabel string, snap domain.Snapshot, outPath string) (string, error) {
	dc := gg.NewContext(canvasWidth, canvasHeight)
	dc.SetColor(color.White)
	dc.Clear()

	dc.SetColor(parseHexColor(r.opts.BrandColor))
	dc.DrawRectangle(0, 0, canvasWidth, 220)
	dc.Fill()

	boldFace := r.loadFace(r.opts.FontBold, boldCandidates, 72)
	regularFace := r.loadFace(r.opts.FontRegular, regularCandidates, 44)

	title := "시간표"
	if r.opts.Grade > 0 && r.opts.Class != "" {
		title = fmt.Sprintf("%d학년 %s반 시간표", r.opts.Grade, r.opts.Class)
	}
	dc.SetFontFace(boldFace)
	dc.SetColor(color.White)
	dc.DrawString(title, 60, 120)

	dc.SetFontFace(regularFace)
	dc.DrawString(dateLabel, 60, 190)

	dc.SetColor(color.Black)
	y := 320.0
	const lineGap = 90.0
	const side = 80.0

	if snap.Empty() {
		dc.DrawString("오늘은 등록된 시간표가 없어요.", side, y)
	}
	for i, p := range snap.Periods {
		subject := p.Subject
		if subject == "" {
			subject = "-"
		}
		if runes := []rune(subject); len(runes) > 18 {
			subject = string(runes[:17]) + "…"
		}
		dc.SetColor(color.Black)
		dc.DrawString(fmt.Sprintf("%d교시  %s", i+1, subject), side, y)

		dc.SetColor(parseHexColor("#eaeaea"))
		dc.SetLineWidth(3)
		dc.DrawLine(side, y+20, canvasWidth-side, y+20)
		dc.Stroke()
		y += lineGap
	}

	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	file, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	if err := jpeg.Encode(file, dc.Image(), &jpeg.Options{Quality: 95}); err != nil {
		return "", err
	}
	return outPath, nil
}

// loadFace подбирает шрифт: путь из окружения, затем кандидаты из assets,
// затем встроенный растровый шрифт (последний не умеет хангыль, но не даёт
// рендереру упасть без установленных шрифтов).
func (r *ImageRenderer) loadFace(envPath string, candidates []string, points float64) font.Face {
	if envPath != "" {
		if face, err := gg.LoadFontFace(envPath, points); err == nil {
			return face
		}
		r.log.Warn().Str("path", envPath).Msg("render: шрифт из окружения не загружен")
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if face, err := gg.LoadFontFace(candidate, points); err == nil {
			return face
		}
	}
	return basicfont.Face7x13
}

func parseHexColor(s string) color.Color {
	var red, green, blue uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &red, &green, &blue); err != nil {
		return color.RGBA{R: 0x2A, G: 0x6C, B: 0xF0, A: 0xFF}
	}
	return color.RGBA{R: red, G: green, B: blue, A: 0xFF}
}
