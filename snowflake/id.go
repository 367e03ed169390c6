// Package snowflake provides k-ordered unique 64-bit IDs composed of a
// millisecond timestamp, a machine ID and a per-millisecond sequence.
package snowflake

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

const (
	machineBits  = 10
	sequenceBits = 12

	maxMachineID = (1 << machineBits) - 1
	maxSequence  = (1 << sequenceBits) - 1
)

// epoch is 2020-01-01T00:00:00Z in Unix milliseconds.
const epoch = 1577836800000

// ErrMachineIDOutOfRange means the machine id wasn't between 0 and 1023.
var ErrMachineIDOutOfRange = errors.New("machine id must be a number between (inclusive) 0 and 1023")

// Generator produces unique IDs and is safe for concurrent use.
type Generator struct {
	mu        sync.Mutex
	machineID uint64
	lastTime  int64
	sequence  uint64
}

// Option is a functional option for Generator.
type Option func(*Generator) error

// WithMachineID fixes the generator's machine id. Callers running multiple
// processes against one store should assign distinct machine ids.
func WithMachineID(id int) Option {
	return func(g *Generator) error {
		if id < 0 || id > maxMachineID {
			return ErrMachineIDOutOfRange
		}
		g.machineID = uint64(id)
		return nil
	}
}

// New returns a Generator. Without options the machine id is drawn at random.
func New(opts ...Option) (*Generator, error) {
	g := &Generator{
		machineID: uint64(rand.Intn(maxMachineID + 1)),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// NextID returns the next ID. IDs from one generator are strictly increasing.
func (g *Generator) NextID() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < g.lastTime {
		// Clock went backwards; hold the last observed time so IDs
		// stay monotonic.
		now = g.lastTime
	}

	if now == g.lastTime {
		g.sequence++
		if g.sequence > maxSequence {
			for now <= g.lastTime {
				now = time.Now().UnixMilli()
			}
			g.sequence = 0
		}
	} else {
		g.sequence = 0
	}
	g.lastTime = now

	return uint64(now-epoch)<<(machineBits+sequenceBits) |
		g.machineID<<sequenceBits |
		g.sequence
}
