package evaluate

import (
	"fmt"
	"strings"
	"time"

	"insta-timetable-bot/internal/domain"
)

var weekdaysKR = []string{"일", "월", "화", "수", "목", "금", "토"}

// FormatDateKR форматирует дату как "2026-03-02 (월)".
func FormatDateKR(t time.Time) string {
	return fmt.Sprintf("%s (%s)", t.Format("2006-01-02"), weekdaysKR[int(t.Weekday())])
}

// BuildCaption собирает подпись ежедневного поста.
func BuildCaption(dateLabel string, snap domain.Snapshot, schoolName string, grade int, class string) string {
	lines := []string{fmt.Sprintf("[%s %d학년 %s반 | %s]", schoolName, grade, class, dateLabel)}
	if snap.Empty() {
		lines = append(lines, "오늘은 등록된 시간표가 없어요.")
	} else {
		for i, p := range snap.Periods {
			subject := strings.TrimSpace(p.Subject)
			if subject == "" {
				subject = "-"
			}
			lines = append(lines, fmt.Sprintf("%d교시  %s", i+1, subject))
		}
	}
	lines = append(lines, "\n※ 변경 시 '정정 게시물'을 올리고, 원본 캡션에 안내를 덧붙입니다.")
	lines = append(lines, "#학교계정 #시간표")
	return strings.Join(lines, "\n")
}

// BuildCorrectionCaption собирает подпись поста-правки.
func BuildCorrectionCaption(dateLabel, schoolName string, grade int, class string) string {
	return fmt.Sprintf("[정정] %s %d학년 %s반 | %s\n변경이 반영되었습니다.", schoolName, grade, class, dateLabel)
}

// BuildAnnotation собирает текст, дописываемый в подпись оригинального поста.
func BuildAnnotation(newPostID string) string {
	return fmt.Sprintf("(정정 있음) 최신 게시물 ID: %s\n— 원본은 기록용으로 유지합니다.", newPostID)
}
