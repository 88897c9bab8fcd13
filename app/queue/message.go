package queue

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const StreamName = "autonomax:ops:tasks"
const ConsumerGroup = "ops-workers"

// OpsTaskMessage is one granted ops run waiting for a worker.
type OpsTaskMessage struct {
	RunID    string
	Task     string
	QueuedAt time.Time
}

func (m OpsTaskMessage) values() map[string]interface{} {
	return map[string]interface{}{
		"run_id":    m.RunID,
		"task":      m.Task,
		"queued_at": m.QueuedAt.UTC().Format(time.RFC3339Nano),
	}
}

// messageFromStream decodes a stream entry written by OpsProducer.
func messageFromStream(msg redis.XMessage) (OpsTaskMessage, error) {
	runID, _ := msg.Values["run_id"].(string)
	task, _ := msg.Values["task"].(string)
	queuedAt, _ := msg.Values["queued_at"].(string)
	if runID == "" || task == "" {
		return OpsTaskMessage{}, fmt.Errorf("message %s: run_id and task are required", msg.ID)
	}

	out := OpsTaskMessage{RunID: runID, Task: task}
	if queuedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, queuedAt)
		if err != nil {
			return OpsTaskMessage{}, fmt.Errorf("message %s: queued_at: %w", msg.ID, err)
		}
		out.QueuedAt = t
	}
	return out, nil
}
