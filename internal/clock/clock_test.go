package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemClockIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, New().Now().Location())
}

func TestFake(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	f := NewFake(start)

	assert.True(t, f.Now().Equal(start))
	assert.Equal(t, time.UTC, f.Now().Location())

	f.Advance(90 * time.Second)
	assert.True(t, f.Now().Equal(start.Add(90*time.Second)))

	f.Set(start)
	assert.True(t, f.Now().Equal(start))
}
