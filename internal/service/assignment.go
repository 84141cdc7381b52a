package service

import (
	"context"
	"math/rand"
	"sync"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

// AgentDirectory lists users eligible for ticket assignment.
type AgentDirectory interface {
	ListActive(ctx context.Context, role domain.Role) ([]domain.User, error)
}

// Selector picks an assignee from a non-empty agent list. The choice
// strategy is pluggable; creation-time assignment uses whichever
// selector the service was built with.
type Selector interface {
	Select(agents []domain.User) domain.User
}

// RandomSelector picks uniformly at random. The random source is
// injected so assignment is deterministic under test.
type RandomSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSelector seeds a selector. Production wiring seeds from the
// clock; tests pass a fixed seed.
func NewRandomSelector(seed int64) *RandomSelector {
	return &RandomSelector{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomSelector) Select(agents []domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return agents[s.rng.Intn(len(agents))]
}

// RoundRobinSelector cycles through agents in directory order.
type RoundRobinSelector struct {
	mu   sync.Mutex
	next int
}

// NewRoundRobinSelector builds a selector starting at the first agent.
func NewRoundRobinSelector() *RoundRobinSelector {
	return &RoundRobinSelector{}
}

func (s *RoundRobinSelector) Select(agents []domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent := agents[s.next%len(agents)]
	s.next++
	return agent
}
