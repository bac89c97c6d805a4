package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_AdvanceAndSet(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewFake(start)

	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestReal_ReturnsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Real{}.Now().Location())
}
