package jobs

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStatsWarmup precomputes dashboard stats for common filters.
	TaskStatsWarmup = "stats:warmup"
	// TaskStatsBump moves the stats cache to a new generation.
	TaskStatsBump = "stats:bump"
)

// StatsWarmupPayload selects what the warmup precomputes.
type StatsWarmupPayload struct {
	// PerCategory also warms one payload per non-consumable category.
	PerCategory bool `json:"per_category"`
}

// StatsBumpPayload records why the cache was invalidated.
type StatsBumpPayload struct {
	Reason string `json:"reason"`
}

// NewStatsWarmupTask constructs a warmup task.
func NewStatsWarmupTask(payload StatsWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatsWarmup, data, asynq.MaxRetry(3), asynq.Queue(QueueDefault)), nil
}

// NewStatsBumpTask constructs a cache bump task.
func NewStatsBumpTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(StatsBumpPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatsBump, data, asynq.MaxRetry(3), asynq.Queue(QueueDefault)), nil
}

var taskBuilders = map[string]func() (*asynq.Task, error){
	TaskStatsWarmup: func() (*asynq.Task, error) {
		return NewStatsWarmupTask(StatsWarmupPayload{PerCategory: true})
	},
	TaskStatsBump: func() (*asynq.Task, error) {
		return NewStatsBumpTask("manual")
	},
}

// TaskNames lists the task types that can be triggered by name.
func TaskNames() []string {
	names := make([]string, 0, len(taskBuilders))
	for name := range taskBuilders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewTaskByName builds a task with default payload for manual triggering.
func NewTaskByName(name string) (*asynq.Task, error) {
	build, ok := taskBuilders[name]
	if !ok {
		return nil, fmt.Errorf("jobs: unknown task %q", name)
	}
	return build()
}
