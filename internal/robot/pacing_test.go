package robot_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbots-io/edgarbot/internal/robot"
)

func TestPacerDisabledWithoutDelay(t *testing.T) {
	t.Parallel()

	pacer := robot.NewPacer(0)
	start := time.Now()
	for range 3 {
		require.NoError(t, pacer.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPacerSpacesCalls(t *testing.T) {
	t.Parallel()

	pacer := robot.NewPacer(40 * time.Millisecond)

	start := time.Now()
	require.NoError(t, pacer.Wait(context.Background()))
	assert.Less(t, time.Since(start), 30*time.Millisecond, "first wait passes immediately")

	require.NoError(t, pacer.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond, "second wait honors the delay")
}

func TestPacerContextCancellation(t *testing.T) {
	t.Parallel()

	pacer := robot.NewPacer(time.Minute)
	require.NoError(t, pacer.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, pacer.Wait(ctx))
}
