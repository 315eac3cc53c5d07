// Package snowflake generates the unique, monotonically increasing ids the
// store assigns to channels and messages. An id packs a millisecond
// timestamp, a worker id, and a per-millisecond increment, so ids are never
// reused within a deployment.
package snowflake

import (
	"fmt"
	"sync"
	"time"
)

const (
	timestampBits int64 = 42
	workerBits    int64 = 10
	incrementBits       = 64 - timestampBits - workerBits

	timestampShift = 64 - timestampBits
	workerShift    = timestampShift - workerBits

	maxWorkerID  = 1<<workerBits - 1
	maxIncrement = 1<<incrementBits - 1
)

type ID struct {
	Timestamp int64
	WorkerID  int64
	Increment int64
}

var (
	mutex         sync.Mutex
	lastTimestamp int64
	lastIncrement int64

	workerID    int64
	hasWorkerID bool
)

// Setup fixes the worker id for this process. Calling it twice is an error;
// ids from two generators with the same worker id could collide.
func Setup(id int64) error {
	mutex.Lock()
	defer mutex.Unlock()

	if id < 0 || id > maxWorkerID {
		return fmt.Errorf("worker ID [%d] out of range 0..%d", id, maxWorkerID)
	}
	if hasWorkerID {
		return fmt.Errorf("snowflake worker ID has already been set")
	}
	workerID = id
	hasWorkerID = true
	return nil
}

// Generate returns the next id. Within one millisecond the increment field
// advances; it overflowing means more than 2^12 ids were requested in a
// single millisecond, which is reported rather than wrapped.
func Generate() (int64, error) {
	mutex.Lock()
	defer mutex.Unlock()

	timestamp := time.Now().UnixMilli()
	if timestamp == lastTimestamp {
		lastIncrement++
		if lastIncrement > maxIncrement {
			return 0, fmt.Errorf("increment overflow at [%d] ids in one millisecond", lastIncrement)
		}
	} else {
		lastIncrement = 0
		lastTimestamp = timestamp
	}

	return timestamp<<timestampShift | workerID<<workerShift | lastIncrement, nil
}

// Extract splits an id back into its fields, mostly for logs and tests.
func Extract(id int64) ID {
	return ID{
		Timestamp: id >> timestampShift,
		WorkerID:  (id >> workerShift) & maxWorkerID,
		Increment: id & maxIncrement,
	}
}
