package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeAutoclickerSweep = "autoclicker:sweep"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Queues is the worker priority map.
func Queues() map[string]int {
	return map[string]int{
		QueueCritical: 6,
		QueueDefault:  3,
		QueueLow:      1,
	}
}

type AutoclickerSweepPayload struct {
	Reason string `json:"reason"`
}

// NewAutoclickerSweepTask builds a sweep task. Unique keeps a backlog of
// identical ticks from piling up while a pass is slow; sweeps are never retried
// because the next tick covers the same accounts.
func NewAutoclickerSweepTask(reason string, every time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(AutoclickerSweepPayload{Reason: reason})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeAutoclickerSweep, payload,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(0),
		asynq.Unique(every),
		asynq.Timeout(every*6),
	), nil
}
