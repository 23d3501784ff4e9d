// Package snowflake generates 64-bit, time-ordered message IDs. IDs from the
// same process are strictly increasing, which makes them usable as the sole
// ordering key for a message log.
package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	// Epoch is the custom epoch (January 1, 2024 00:00:00 UTC), milliseconds.
	Epoch int64 = 1704067200000

	workerIDBits uint8 = 10
	sequenceBits uint8 = 12

	maxWorkerID int64 = -1 ^ (-1 << workerIDBits)
	maxSequence int64 = -1 ^ (-1 << sequenceBits)

	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

var (
	ErrInvalidWorkerID     = errors.New("worker ID exceeds maximum value")
	ErrClockMovedBackwards = errors.New("clock moved backwards")
)

// Generator produces snowflake IDs for a single worker.
type Generator struct {
	mu sync.Mutex

	workerID      int64
	sequence      int64
	lastTimestamp int64
}

// NewGenerator creates a generator bound to the given worker ID.
func NewGenerator(workerID int64) (*Generator, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, ErrInvalidWorkerID
	}
	return &Generator{workerID: workerID, lastTimestamp: -1}, nil
}

// Next returns the next ID. It blocks for at most one millisecond when the
// per-millisecond sequence is exhausted.
func (g *Generator) Next() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := nowMillis()
	if ts < g.lastTimestamp {
		return 0, ErrClockMovedBackwards
	}

	if ts == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			// sequence exhausted for this millisecond, spin to the next one
			for ts <= g.lastTimestamp {
				ts = nowMillis()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastTimestamp = ts

	id := ((ts - Epoch) << timestampShift) | (g.workerID << workerIDShift) | g.sequence
	return id, nil
}

// Timestamp extracts the millisecond timestamp embedded in an ID.
func Timestamp(id int64) time.Time {
	ms := (id >> timestampShift) + Epoch
	return time.UnixMilli(ms)
}

// WorkerID extracts the worker ID embedded in an ID.
func WorkerID(id int64) int64 {
	return (id >> workerIDShift) & maxWorkerID
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
