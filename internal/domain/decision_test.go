package domain

import "testing"

func TestDecideFirstPostOnAbsent(t *testing.T) {
	got := Decide(LedgerRecord{}, false, "abc")
	if got != DecisionFirstPost {
		t.Fatalf("без записи ожидали FirstPost, получили %s", got)
	}
}

func TestDecideNoChangeIdempotent(t *testing.T) {
	rec := LedgerRecord{PostID: "P1", Fingerprint: "f1"}
	for i := 0; i < 5; i++ {
		if got := Decide(rec, true, "f1"); got != DecisionNoChange {
			t.Fatalf("прогон %d: ожидали NoChange, получили %s", i, got)
		}
	}
}

func TestDecideCorrectionOnDiff(t *testing.T) {
	rec := LedgerRecord{PostID: "P1", Fingerprint: "f1"}
	if got := Decide(rec, true, "f2"); got != DecisionCorrection {
		t.Fatalf("ожидали Correction, получили %s", got)
	}
}

// Четыре прогона одного дня: A → первая публикация, A → без изменений,
// B → исправление с сохранением исходного post_id, B → без изменений.
func TestDecideConvergence(t *testing.T) {
	fpA := Fingerprint(Snapshot{Date: "20260302", Periods: []Period{{Number: 1, Subject: "국어"}}})
	fpB := Fingerprint(Snapshot{Date: "20260302", Periods: []Period{{Number: 1, Subject: "수학"}}})

	var rec LedgerRecord
	exists := false

	if got := Decide(rec, exists, fpA); got != DecisionFirstPost {
		t.Fatalf("прогон 1: ожидали FirstPost, получили %s", got)
	}
	rec, exists = LedgerRecord{PostID: "P1", Fingerprint: fpA}, true

	if got := Decide(rec, exists, fpA); got != DecisionNoChange {
		t.Fatalf("прогон 2: ожидали NoChange, получили %s", got)
	}

	if got := Decide(rec, exists, fpB); got != DecisionCorrection {
		t.Fatalf("прогон 3: ожидали Correction, получили %s", got)
	}
	rec = LedgerRecord{PostID: rec.PostID, Fingerprint: fpB}

	if got := Decide(rec, exists, fpB); got != DecisionNoChange {
		t.Fatalf("прогон 4: ожидали NoChange, получили %s", got)
	}
	if rec.PostID != "P1" {
		t.Fatalf("после исправления post_id должен остаться P1, получили %s", rec.PostID)
	}
}

func TestDecisionString(t *testing.T) {
	cases := map[Decision]string{
		DecisionNoChange:   "no_change",
		DecisionFirstPost:  "first_post",
		DecisionCorrection: "correction",
		Decision(42):       "unknown",
	}
	for d, want := range cases {
		if d.String() != want {
			t.Fatalf("Decision(%d).String() = %s, ожидали %s", int(d), d.String(), want)
		}
	}
}
