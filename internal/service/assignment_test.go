package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-workflow/internal/domain"
)

func agentPool(n int) []domain.User {
	agents := make([]domain.User, 0, n)
	for i := 0; i < n; i++ {
		agents = append(agents, domain.User{
			ID:       string(rune('a' + i)),
			Username: "agent-" + string(rune('a'+i)),
			Role:     domain.RoleSupport,
			Active:   true,
		})
	}
	return agents
}

func TestRandomSelectorIsDeterministicPerSeed(t *testing.T) {
	agents := agentPool(5)

	first := NewRandomSelector(42)
	second := NewRandomSelector(42)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first.Select(agents).ID, second.Select(agents).ID)
	}
}

func TestRandomSelectorCoversPool(t *testing.T) {
	agents := agentPool(3)
	selector := NewRandomSelector(7)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		seen[selector.Select(agents).ID] = true
	}
	assert.Len(t, seen, 3, "every agent should be selectable")
}

func TestRoundRobinSelectorCycles(t *testing.T) {
	agents := agentPool(3)
	selector := NewRoundRobinSelector()

	var picks []string
	for i := 0; i < 6; i++ {
		picks = append(picks, selector.Select(agents).ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, picks)
}
