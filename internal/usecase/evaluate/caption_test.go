package evaluate

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"insta-timetable-bot/internal/domain"
)

func TestFormatDateKR(t *testing.T) {
	cases := []struct {
		date time.Time
		want string
	}{
		{time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC), "2026-03-02 (월)"},
		{time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC), "2026-03-01 (일)"},
		{time.Date(2026, 3, 7, 7, 0, 0, 0, time.UTC), "2026-03-07 (토)"},
	}
	for _, tc := range cases {
		if got := FormatDateKR(tc.date); got != tc.want {
			t.Fatalf("ожидали %q, получили %q", tc.want, got)
		}
	}
}

func TestBuildCaptionGolden(t *testing.T) {
	g := goldie.New(t)

	snap := domain.Snapshot{Date: "20260302", Periods: []domain.Period{
		{Number: 1, Subject: "수학"},
		{Number: 2, Subject: "자료구조", Room: "301"},
		{Number: 3, Subject: ""},
	}}
	got := BuildCaption("2026-03-02 (월)", snap, "선린인터넷고등학교", 3, "11")
	g.Assert(t, "daily_caption", []byte(got))
}

func TestBuildCaptionEmptyDayGolden(t *testing.T) {
	g := goldie.New(t)

	got := BuildCaption("2026-03-01 (일)", domain.Snapshot{Date: "20260301"}, "선린인터넷고등학교", 3, "11")
	g.Assert(t, "empty_day_caption", []byte(got))
}

func TestBuildCorrectionCaptionGolden(t *testing.T) {
	g := goldie.New(t)

	got := BuildCorrectionCaption("2026-03-02 (월)", "선린인터넷고등학교", 3, "11")
	g.Assert(t, "correction_caption", []byte(got))
}

func TestBuildAnnotation(t *testing.T) {
	got := BuildAnnotation("18000000000000001")
	want := "(정정 있음) 최신 게시물 ID: 18000000000000001\n— 원본은 기록용으로 유지합니다."
	if got != want {
		t.Fatalf("ожидали %q, получили %q", want, got)
	}
}
