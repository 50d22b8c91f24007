package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFake_AdvanceFiresDueTimersInOrder(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var fired []string
	c.AfterFunc(2*time.Minute, func() { fired = append(fired, "second") })
	c.AfterFunc(1*time.Minute, func() { fired = append(fired, "first") })
	c.AfterFunc(10*time.Minute, func() { fired = append(fired, "late") })

	c.Advance(5 * time.Minute)

	require.Equal(t, []string{"first", "second"}, fired)
	require.Equal(t, 1, c.Armed())
	require.Equal(t, start.Add(5*time.Minute), c.Now())
}

func TestFake_StopPreventsFiring(t *testing.T) {
	c := NewFake(time.Now())

	called := false
	timer := c.AfterFunc(time.Minute, func() { called = true })
	require.True(t, timer.Stop())
	require.False(t, timer.Stop())

	c.Advance(time.Hour)
	require.False(t, called)
	require.Equal(t, 0, c.Armed())
}

func TestFake_PastDeadlineFiresImmediately(t *testing.T) {
	c := NewFake(time.Now())

	called := false
	c.AfterFunc(-time.Minute, func() { called = true })
	require.True(t, called)
}
