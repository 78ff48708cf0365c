package proxypool

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Strategy picks the next entry from the active set. Pick is always called
// under the pool lock with a non-empty slice and must not block.
type Strategy interface {
	Name() string
	Pick(active []*Entry) *Entry
}

// NewStrategy resolves a strategy by its configured name.
func NewStrategy(name string) (Strategy, error) {
	switch strings.ToLower(name) {
	case "", "sequential":
		return &SequentialStrategy{}, nil
	case "random":
		return NewRandomStrategy(time.Now().UnixNano()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// SequentialStrategy walks the active set in order, wrapping the cursor
// modulo the active count. Blacklisted entries are already filtered out of
// the slice it sees.
type SequentialStrategy struct {
	cursor int
}

func (s *SequentialStrategy) Name() string { return "sequential" }

func (s *SequentialStrategy) Pick(active []*Entry) *Entry {
	e := active[s.cursor%len(active)]
	s.cursor++
	return e
}

// RandomStrategy picks uniformly among active entries.
type RandomStrategy struct {
	rng *rand.Rand
}

func NewRandomStrategy(seed int64) *RandomStrategy {
	return &RandomStrategy{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomStrategy) Name() string { return "random" }

func (s *RandomStrategy) Pick(active []*Entry) *Entry {
	return active[s.rng.Intn(len(active))]
}
