package usecase

import (
	"context"
	"errors"
	"time"

	repo "shopcheckout/internal/repository"

	"github.com/cenkalti/backoff/v4"
)

// version競合だけを指数バックオフでやり直す。
// 回数を使い切ったらErrConcurrentModification
func retryOnConflict(ctx context.Context, maxRetries uint64, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		err := op()
		if err == nil || errors.Is(err, repo.ErrVersionConflict) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx))

	if errors.Is(err, repo.ErrVersionConflict) {
		return ErrConcurrentModification
	}
	return err
}
