// Package anticheat flags tap streams that look automated.
package anticheat

import "math"

const (
	// HistoryCapacity bounds the stored interval history.
	HistoryCapacity = 50
	// WindowSize is how many of the newest samples are analyzed.
	WindowSize = 20
	// MinSamples is the history length below which nothing is flagged.
	MinSamples = 5

	fastIntervalMS  = 50
	fastCountLimit  = 10
	meanThresholdMS = 60
)

// Verdict is the analyzer output.
type Verdict struct {
	Suspicious bool
	MeanMS     int64
}

// Analyze inspects the most recent intervals (milliseconds between taps).
func Analyze(intervals []int64) Verdict {
	if len(intervals) < MinSamples {
		return Verdict{}
	}

	window := intervals
	if len(window) > WindowSize {
		window = window[len(window)-WindowSize:]
	}

	var sum int64
	fast := 0
	for _, v := range window {
		sum += v
		if v < fastIntervalMS {
			fast++
		}
	}

	mean := float64(sum) / float64(len(window))

	return Verdict{
		Suspicious: fast > fastCountLimit || mean < meanThresholdMS,
		MeanMS:     int64(math.Round(mean)),
	}
}

// Record appends interval to history, evicting the oldest entries beyond HistoryCapacity.
func Record(history []int64, interval int64) []int64 {
	history = append(history, interval)
	if over := len(history) - HistoryCapacity; over > 0 {
		trimmed := make([]int64, HistoryCapacity)
		copy(trimmed, history[over:])
		return trimmed
	}
	return history
}
