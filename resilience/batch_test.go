package resilience_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-docs-client/resilience"
)

func TestBatchRunsEverythingDespiteFailure(t *testing.T) {
	var completed atomic.Int32
	boom := errors.New("operation 1 failed")

	err := resilience.Batch(context.Background(),
		func(context.Context) error {
			time.Sleep(10 * time.Millisecond)
			completed.Add(1)
			return nil
		},
		func(context.Context) error {
			return boom
		},
		func(context.Context) error {
			time.Sleep(20 * time.Millisecond)
			completed.Add(1)
			return nil
		},
	)

	require.ErrorIs(t, err, boom, "the failure surfaces as the whole-batch error")
	require.Equal(t, int32(2), completed.Load(), "one failure never aborts the other operations")
}

func TestBatchAllSucceed(t *testing.T) {
	var completed atomic.Int32

	err := resilience.Batch(context.Background(),
		func(context.Context) error { completed.Add(1); return nil },
		func(context.Context) error { completed.Add(1); return nil },
		func(context.Context) error { completed.Add(1); return nil },
	)

	require.NoError(t, err)
	require.Equal(t, int32(3), completed.Load())
}

func TestBatchEmpty(t *testing.T) {
	require.NoError(t, resilience.Batch(context.Background()))
}

func TestCollectPreservesResultOrder(t *testing.T) {
	results, err := resilience.Collect(context.Background(),
		func(context.Context) (int, error) {
			time.Sleep(20 * time.Millisecond)
			return 1, nil
		},
		func(context.Context) (int, error) {
			return 2, nil
		},
		func(context.Context) (int, error) {
			time.Sleep(10 * time.Millisecond)
			return 3, nil
		},
	)

	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, results, "results land at their operation's index")
}

func TestCollectSurfacesFailure(t *testing.T) {
	boom := errors.New("fetch failed")

	results, err := resilience.Collect(context.Background(),
		func(context.Context) (string, error) { return "a", nil },
		func(context.Context) (string, error) { return "", boom },
	)

	require.ErrorIs(t, err, boom)
	require.Equal(t, "a", results[0], "successful results are still collected")
}
