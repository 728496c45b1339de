package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonotonicClock_Never_Repeats(t *testing.T) {
	req := require.New(t)
	frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMonotonicClock()
	clock.now = func() time.Time { return frozen }

	first := clock.Now()
	second := clock.Now()

	req.True(second.After(first))
	req.Equal(time.Nanosecond, second.Sub(first))
}

func TestMonotonicClock_Survives_Backward_Step(t *testing.T) {
	req := require.New(t)
	now := time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC)
	clock := NewMonotonicClock()
	clock.now = func() time.Time { return now }

	first := clock.Now()
	now = now.Add(-5 * time.Second)

	req.True(clock.Now().After(first))
}
