package domain

// Decision — исход сравнения свежего отпечатка с журналом.
type Decision int

const (
	// DecisionNoChange — запись есть и отпечаток не изменился, публикации нет.
	DecisionNoChange Decision = iota
	// DecisionFirstPost — записи за дату ещё нет, нужна первая публикация.
	DecisionFirstPost
	// DecisionCorrection — запись есть, но отпечаток разошёлся: нужен
	// отдельный пост-исправление.
	DecisionCorrection
)

// String возвращает имя решения для логов и метрик.
func (d Decision) String() string {
	switch d {
	case DecisionNoChange:
		return "no_change"
	case DecisionFirstPost:
		return "first_post"
	case DecisionCorrection:
		return "correction"
	default:
		return "unknown"
	}
}

// Decide сравнивает свежий отпечаток с последней записью журнала за дату.
// При исправлении вызывающая сторона обязана сохранить в журнале id
// ОРИГИНАЛЬНОГО поста вместе с НОВЫМ отпечатком: post_id — стабильный
// указатель на первый пост дня, продвигается только отпечаток, чтобы
// следующий прогон без изменений дал NoChange, а не второе исправление.
func Decide(rec LedgerRecord, exists bool, newFingerprint string) Decision {
	if !exists {
		return DecisionFirstPost
	}
	if rec.Fingerprint == newFingerprint {
		return DecisionNoChange
	}
	return DecisionCorrection
}
