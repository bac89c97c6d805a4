package anticheat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func repeat(v int64, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestAnalyze(t *testing.T) {
	testCases := []struct {
		name      string
		intervals []int64
		expected  Verdict
	}{
		{name: "empty", intervals: nil, expected: Verdict{}},
		{name: "too few samples even if fast", intervals: repeat(1, 4), expected: Verdict{}},
		{name: "steady machine taps", intervals: repeat(40, 20), expected: Verdict{Suspicious: true, MeanMS: 40}},
		{name: "human pace", intervals: repeat(200, 20), expected: Verdict{Suspicious: false, MeanMS: 200}},
		{name: "mean just under threshold", intervals: repeat(59, 5), expected: Verdict{Suspicious: true, MeanMS: 59}},
		{
			name:      "eleven fast among slow",
			intervals: append(repeat(500, 9), repeat(10, 11)...),
			expected:  Verdict{Suspicious: true, MeanMS: 231},
		},
		{
			name:      "ten fast among slow is tolerated",
			intervals: append(repeat(500, 10), repeat(10, 10)...),
			expected:  Verdict{Suspicious: false, MeanMS: 255},
		},
		{
			name:      "only newest twenty count",
			intervals: append(repeat(1, 30), repeat(300, 20)...),
			expected:  Verdict{Suspicious: false, MeanMS: 300},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Analyze(tc.intervals))
		})
	}
}

func TestRecord_EvictsOldest(t *testing.T) {
	var history []int64
	for i := int64(1); i <= 60; i++ {
		history = Record(history, i)
	}

	assert.Len(t, history, HistoryCapacity)
	assert.Equal(t, int64(11), history[0])
	assert.Equal(t, int64(60), history[len(history)-1])
}
