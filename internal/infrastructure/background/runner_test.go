package background_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GX-mob/gx-service-template/internal/infrastructure/background"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestRunner_RunsTasksAndDrainsOnClose(t *testing.T) {
	r := background.NewRunner(2, 16, time.Second, nil)
	var n atomic.Int32
	for i := 0; i < 10; i++ {
		r.Go("count", func(ctx context.Context) error {
			n.Add(1)
			return nil
		})
	}
	r.Close()
	require.Equal(t, int32(10), n.Load())
}

func TestRunner_DetachesFromCallerCancellation(t *testing.T) {
	r := background.NewRunner(1, 1, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sawErr atomic.Value
	r.GoContext(ctx, "detached", func(ctx context.Context) error {
		sawErr.Store(ctx.Err() == nil)
		return nil
	})
	r.Close()
	require.Equal(t, true, sawErr.Load())
}

func TestRunner_LogsFailuresAndPanics(t *testing.T) {
	logger, hook := test.NewNullLogger()
	r := background.NewRunner(1, 4, time.Second, logger)

	r.Go("fails", func(ctx context.Context) error { return errors.New("boom") })
	r.Go("panics", func(ctx context.Context) error { panic("kaboom") })
	r.Close()

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.Equal(t, logrus.WarnLevel, e.Level)
		require.Contains(t, []any{"fails", "panics"}, e.Data["task"])
	}
}

func TestRunner_DropsAfterClose(t *testing.T) {
	logger, hook := test.NewNullLogger()
	r := background.NewRunner(1, 1, 0, logger)
	r.Close()

	ran := false
	r.Go("late", func(ctx context.Context) error { ran = true; return nil })
	require.False(t, ran)
	require.Equal(t, "background: runner closed, task dropped", hook.LastEntry().Message)
}
