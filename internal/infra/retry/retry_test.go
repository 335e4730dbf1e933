package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("временная ошибка")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if calls != 3 {
		t.Fatalf("ожидали 3 вызова, получили %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	wantErr := errors.New("всегда падает")
	err := Do(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("ожидали исходную ошибку, получили %v", err)
	}
	if calls != 3 {
		t.Fatalf("ожидали ровно 3 попытки, получили %d", calls)
	}
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	fatal := errors.New("фатальная ошибка данных")
	err := Do(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return Permanent(fatal)
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("ожидали фатальную ошибку, получили %v", err)
	}
	if calls != 1 {
		t.Fatalf("Permanent не должен повторяться, вызовов: %d", calls)
	}
}

func TestDoRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, 5, 50*time.Millisecond, func() error {
		calls++
		return errors.New("временная ошибка")
	})
	if err == nil {
		t.Fatalf("ожидали ошибку после отмены контекста")
	}
	if calls > 1 {
		t.Fatalf("после отмены не должно быть повторов, вызовов: %d", calls)
	}
}

func TestPermanentNil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Fatalf("Permanent(nil) должен вернуть nil")
	}
}
