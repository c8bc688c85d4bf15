package resilience

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Batch runs every operation concurrently and waits for all of them; one
// failure never aborts the others. Each failure is logged with its index,
// and the first one is returned as the whole-batch error.
func Batch(ctx context.Context, ops ...func(context.Context) error) error {
	var group errgroup.Group

	for i, op := range ops {
		group.Go(func() error {
			if err := op(ctx); err != nil {
				log.Error().Int("operation", i).Err(err).Msg("batch operation failed")
				return err
			}
			return nil
		})
	}

	return group.Wait()
}

// Collect is Batch for operations that produce values: results land at the
// index of their operation, and the first failure (if any) is returned
// after every operation has finished.
func Collect[T any](ctx context.Context, ops ...func(context.Context) (T, error)) ([]T, error) {
	results := make([]T, len(ops))
	var group errgroup.Group

	for i, op := range ops {
		group.Go(func() error {
			result, err := op(ctx)
			if err != nil {
				log.Error().Int("operation", i).Err(err).Msg("batch operation failed")
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
