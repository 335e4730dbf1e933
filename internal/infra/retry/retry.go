package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Do выполняет fn до attempts раз с экспоненциальной паузой начиная с base.
// Повторяются только временные ошибки; ошибка, обёрнутая в Permanent,
// возвращается сразу. Отмена контекста тоже прекращает попытки.
func Do(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = base
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx)
	return backoff.Retry(fn, policy)
}

// Permanent помечает ошибку как неповторяемую (ошибка данных, авторизации).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}
