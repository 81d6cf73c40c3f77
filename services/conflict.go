package services

import (
	"context"
	"errors"
	"time"

	"invites.fest2.fun/repositories"

	"github.com/cenkalti/backoff/v5"
)

const defaultConflictAttempts = 8

func conflictBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	return b
}

// retryOnConflict runs fn until it succeeds, fails with anything other than a
// version conflict, or attempts run out. fn must reload state on every call.
// The last conflict is returned unchanged when the budget is spent.
func retryOnConflict(ctx context.Context, attempts uint, onConflict func(), fn func() error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn()
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, repositories.ErrVersionConflict):
			if onConflict != nil {
				onConflict()
			}
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	},
		backoff.WithBackOff(conflictBackOff()),
		backoff.WithMaxTries(attempts),
	)
	return err
}
