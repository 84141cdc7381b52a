package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-workflow/internal/classifier"
	"github.com/spec-kit/ticket-workflow/internal/domain"
	"github.com/spec-kit/ticket-workflow/internal/events"
	"github.com/spec-kit/ticket-workflow/internal/observability"
	"github.com/spec-kit/ticket-workflow/internal/repository"
	apperrors "github.com/spec-kit/ticket-workflow/pkg/util"
)

// fakeTicketRepo mirrors the Postgres repository's atomicity contract:
// Apply and ApplyRating mutate under one lock, and reads hand out copies.
type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	seq     int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ticket.ID = "ticket-" + strconv.Itoa(r.seq)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets[ticket.ID] = copyTicket(ticket)
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return copyTicket(ticket), nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.CustomerID != nil && ticket.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.AccessibleTo != nil {
			assigned := ticket.AssignedTo != nil && *ticket.AssignedTo == *filter.AccessibleTo
			if !assigned && ticket.CustomerID != *filter.AccessibleTo {
				continue
			}
		}
		result = append(result, *copyTicket(ticket))
	}
	return result, nil
}

func (r *fakeTicketRepo) Apply(_ context.Context, id string, m repository.TicketMutation) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if m.SetStatus != nil {
		ticket.Status = *m.SetStatus
	}
	// Same guards as the SQL: a stale escalation write never lowers
	// urgency or moves sentiment off negative.
	if m.SetSentiment != nil && ticket.Sentiment != domain.SentimentNegative {
		ticket.Sentiment = *m.SetSentiment
	}
	if m.SetUrgency != nil && m.SetUrgency.MoreSevereThan(ticket.Urgency) {
		ticket.Urgency = *m.SetUrgency
	}
	if m.SetAssignedTo != nil {
		assignee := *m.SetAssignedTo
		ticket.AssignedTo = &assignee
	}
	ticket.Messages = append(ticket.Messages, m.AppendMessages...)
	ticket.History = append(ticket.History, m.AppendHistory...)
	ticket.UpdatedAt = time.Now()
	return copyTicket(ticket), nil
}

func (r *fakeTicketRepo) ApplyRating(_ context.Context, id string, rating int, entry domain.HistoryEntry) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok || ticket.Rating != nil || ticket.Status != domain.TicketStatusClosed {
		return nil, pgx.ErrNoRows
	}
	ticket.Rating = &rating
	ticket.History = append(ticket.History, entry)
	ticket.UpdatedAt = time.Now()
	return copyTicket(ticket), nil
}

func copyTicket(t *domain.Ticket) *domain.Ticket {
	clone := *t
	if t.AssignedTo != nil {
		assignee := *t.AssignedTo
		clone.AssignedTo = &assignee
	}
	if t.Rating != nil {
		rating := *t.Rating
		clone.Rating = &rating
	}
	clone.Messages = append([]domain.Message(nil), t.Messages...)
	clone.History = append([]domain.HistoryEntry(nil), t.History...)
	return &clone
}

// staleReadRepo serves a fixed earlier snapshot from GetByID while
// writes still go to the shared underlying repository. This reproduces
// the window where a concurrent mutation lands between a caller's read
// and its update.
type staleReadRepo struct {
	*fakeTicketRepo
	stale *domain.Ticket
}

func (r *staleReadRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if r.stale != nil && r.stale.ID == id {
		return copyTicket(r.stale), nil
	}
	return r.fakeTicketRepo.GetByID(ctx, id)
}

type fakeDirectory struct {
	agents []domain.User
	err    error
}

func (d *fakeDirectory) ListActive(_ context.Context, _ domain.Role) ([]domain.User, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.agents, nil
}

var (
	customer      = domain.Identity{ID: "cust-1", Username: "alice", Role: domain.RoleCustomer}
	otherCustomer = domain.Identity{ID: "cust-2", Username: "bob", Role: domain.RoleCustomer}
	supportUser   = domain.Identity{ID: "agent-1", Username: "carol", Role: domain.RoleSupport}
	adminUser     = domain.Identity{ID: "admin-1", Username: "dave", Role: domain.RoleAdmin}
)

func supportAgents() []domain.User {
	return []domain.User{
		{ID: "agent-1", Username: "carol", Role: domain.RoleSupport, Active: true},
		{ID: "agent-2", Username: "erin", Role: domain.RoleSupport, Active: true},
	}
}

// soloSupport pins assignment to agent-1 so tests acting as that agent
// are guaranteed visibility of the created ticket.
func soloSupport() []domain.User {
	return supportAgents()[:1]
}

func newTestService(repo repository.TicketRepository, agents []domain.User) *TicketService {
	return NewTicketService(TicketDependencies{
		TicketRepo: repo,
		Directory:  &fakeDirectory{agents: agents},
		Selector:   NewRandomSelector(1),
		Classifier: classifier.NewEngine(nil, time.Second, zap.NewNop(), observability.NewMetrics()),
		Dispatcher: events.NewInMemoryDispatcher(),
		Logger:     zap.NewNop(),
	})
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, code, domainErr.Code)
}

func TestCreateTicket(t *testing.T) {
	ctx := context.Background()

	t.Run("UrgentMessageClassifiedAndAssigned", func(t *testing.T) {
		svc := newTestService(newFakeTicketRepo(), supportAgents())

		ticket, err := svc.CreateTicket(ctx, customer, TicketCreateInput{
			Subject: "Nothing works",
			Message: "this is urgent, nothing works",
		})
		require.NoError(t, err)

		assert.Equal(t, domain.UrgencyUrgent, ticket.Urgency)
		assert.Equal(t, domain.CategoryUrgent, ticket.Category)
		assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
		assert.Equal(t, customer.ID, ticket.CustomerID)
		assert.Equal(t, "alice", ticket.CustomerName)

		require.Len(t, ticket.Messages, 1)
		assert.Equal(t, domain.SenderCustomer, ticket.Messages[0].Sender)

		require.NotNil(t, ticket.AssignedTo)
		require.Len(t, ticket.History, 2)
		assert.Contains(t, ticket.History[0].Action, "Ticket created with urgency urgent")
		assert.Contains(t, ticket.History[1].Action, "Assigned to support agent")
	})

	t.Run("NoAgentsAvailableIsNotAnError", func(t *testing.T) {
		svc := newTestService(newFakeTicketRepo(), nil)

		ticket, err := svc.CreateTicket(ctx, customer, TicketCreateInput{
			Subject: "Help",
			Message: "hello, can someone help me",
		})
		require.NoError(t, err)

		assert.Nil(t, ticket.AssignedTo)
		require.Len(t, ticket.History, 2)
		assert.Equal(t, "No support agents available for assignment", ticket.History[1].Action)
	})

	t.Run("AssignmentIsDeterministicUnderSeededSelector", func(t *testing.T) {
		first := newTestService(newFakeTicketRepo(), supportAgents())
		second := newTestService(newFakeTicketRepo(), supportAgents())

		a, err := first.CreateTicket(ctx, customer, TicketCreateInput{Subject: "s", Message: "m"})
		require.NoError(t, err)
		b, err := second.CreateTicket(ctx, customer, TicketCreateInput{Subject: "s", Message: "m"})
		require.NoError(t, err)
		assert.Equal(t, *a.AssignedTo, *b.AssignedTo)
	})

	t.Run("NonCustomerRejected", func(t *testing.T) {
		svc := newTestService(newFakeTicketRepo(), supportAgents())
		_, err := svc.CreateTicket(ctx, supportUser, TicketCreateInput{Subject: "s", Message: "m"})
		requireCode(t, err, "FORBIDDEN")
	})

	t.Run("EmptySubjectOrMessageRejected", func(t *testing.T) {
		svc := newTestService(newFakeTicketRepo(), supportAgents())
		_, err := svc.CreateTicket(ctx, customer, TicketCreateInput{Subject: " ", Message: "m"})
		requireCode(t, err, "VALIDATION_FAILED")
		_, err = svc.CreateTicket(ctx, customer, TicketCreateInput{Subject: "s", Message: ""})
		requireCode(t, err, "VALIDATION_FAILED")
	})
}

func TestAppendMessage(t *testing.T) {
	ctx := context.Background()

	create := func(t *testing.T, svc *TicketService, message string) *domain.Ticket {
		t.Helper()
		ticket, err := svc.CreateTicket(ctx, customer, TicketCreateInput{Subject: "subject", Message: message})
		require.NoError(t, err)
		return ticket
	}

	t.Run("NegativeFollowUpUpdatesSentimentOnly", func(t *testing.T) {
		svc := newTestService(newFakeTicketRepo(), supportAgents())
		ticket := create(t, svc, "hello, can someone help me")
		require.Equal(t, domain.SentimentNeutral, ticket.Sentiment)
		baseline := len(ticket.History)

		updated, err := svc.AppendMessage(ctx, customer, ticket.ID, "I am very unhappy with this")
		require.NoError(t, err)

		assert.Equal(t, domain.SentimentNegative, updated.Sentiment)
		assert.Equal(t, ticket.Urgency, updated.Urgency, "urgency unchanged when message is not more severe")
		require.Len(t, updated.History, baseline+1)
		assert.Contains(t, updated.History[baseline].Action, "Sentiment updated to negative")
		require.Len(t, updated.Messages, 2)
	})

	t.Run("MoreSevereMessageEscalatesUrgency", func(t *testing.T) {
		svc := newTestService(newFakeTicketRepo(), supportAgents())
		ticket := create(t, svc, "hello, can someone help me")
		require.Equal(t, domain.UrgencyLow, ticket.Urgency)

		updated, err := svc.AppendMessage(ctx, customer, ticket.ID, "now it is an emergency")
		require.NoError(t, err)
		assert.Equal(t, domain.UrgencyUrgent, updated.Urgency)
		assert.Contains(t, updated.History[len(updated.History)-1].Action, "Urgency escalated to urgent")
	})

	t.Run("UrgencyNeverLowers", func(t *testing.T) {
		svc := newTestService(newFakeTicketRepo(), supportAgents())
		ticket := create(t, svc, "this is urgent, nothing works")
		require.Equal(t, domain.UrgencyUrgent, ticket.Urgency)

		updated, err := svc.AppendMessage(ctx, customer, ticket.ID, "just a billing question now")
		require.NoError(t, err)
		assert.Equal(t, domain.UrgencyUrgent, updated.Urgency)
	})

	t.Run("NegativeSentimentNeverRecoversAutomatically", func(t *testing.T) {
		svc := newTestService(newFakeTicketRepo(), supportAgents())
		ticket := create(t, svc, "I am very unhappy with this")
		require.Equal(t, domain.SentimentNegative, ticket.Sentiment)

		updated, err := svc.AppendMessage(ctx, customer, ticket.ID, "thank you, it seems better")
		require.NoError(t, err)
		assert.Equal(t, domain.SentimentNegative, updated.Sentiment)
	})

	t.Run("SupportMessageNeverReclassifies", func(t *testing.T) {
		svc := newTestService(newFakeTicketRepo(), soloSupport())
		ticket := create(t, svc, "hello, can someone help me")

		updated, err := svc.AppendMessage(ctx, supportUser, ticket.ID, "urgent emergency on our side, checking the error")
		require.NoError(t, err)

		assert.Equal(t, domain.UrgencyLow, updated.Urgency)
		assert.Equal(t, domain.SentimentNeutral, updated.Sentiment)
		require.Len(t, updated.Messages, 2)
		assert.Equal(t, domain.SenderSupport, updated.Messages[1].Sender)
		assert.Equal(t, "support sent a message", updated.History[len(updated.History)-1].Action)
	})

	t.Run("EmptyTextRejected", func(t *testing.T) {
		svc := newTestService(newFakeTicketRepo(), supportAgents())
		ticket := create(t, svc, "hello")
		_, err := svc.AppendMessage(ctx, customer, ticket.ID, "   ")
		requireCode(t, err, "VALIDATION_FAILED")
	})

	t.Run("UnknownTicketRejected", func(t *testing.T) {
		svc := newTestService(newFakeTicketRepo(), supportAgents())
		_, err := svc.AppendMessage(ctx, customer, "ticket-404", "hello")
		requireCode(t, err, "NOT_FOUND")
	})

	t.Run("ForeignCustomerRejected", func(t *testing.T) {
		svc := newTestService(newFakeTicketRepo(), supportAgents())
		ticket := create(t, svc, "hello")
		_, err := svc.AppendMessage(ctx, otherCustomer, ticket.ID, "let me in")
		requireCode(t, err, "FORBIDDEN")
	})
}

// Two customer messages can interleave so that both are evaluated
// against the same pre-escalation ticket. Whichever write lands second
// carries a stale classification; the repository guard must keep the
// escalated fields from regressing.
func TestConcurrentMessagesKeepEscalationMonotone(t *testing.T) {
	ctx := context.Background()

	t.Run("StaleMediumWriteNeverLowersUrgency", func(t *testing.T) {
		repo := newFakeTicketRepo()
		svc := newTestService(repo, supportAgents())

		ticket, err := svc.CreateTicket(ctx, customer, TicketCreateInput{Subject: "s", Message: "hello"})
		require.NoError(t, err)
		stale, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		require.Equal(t, domain.UrgencyLow, stale.Urgency)

		// First message escalates to urgent.
		escalated, err := svc.AppendMessage(ctx, customer, ticket.ID, "now it is an emergency")
		require.NoError(t, err)
		require.Equal(t, domain.UrgencyUrgent, escalated.Urgency)

		// Second message was classified against the stale low-urgency
		// read and lands after the escalation.
		staleSvc := newTestService(&staleReadRepo{fakeTicketRepo: repo, stale: stale}, supportAgents())
		updated, err := staleSvc.AppendMessage(ctx, customer, ticket.ID, "just a billing question")
		require.NoError(t, err)

		assert.Equal(t, domain.UrgencyUrgent, updated.Urgency)
		final, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.UrgencyUrgent, final.Urgency)
		require.Len(t, final.Messages, 3, "both messages still land")
	})

	t.Run("StalePositiveWriteNeverClearsNegativeSentiment", func(t *testing.T) {
		repo := newFakeTicketRepo()
		svc := newTestService(repo, supportAgents())

		ticket, err := svc.CreateTicket(ctx, customer, TicketCreateInput{Subject: "s", Message: "hello"})
		require.NoError(t, err)
		stale, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		require.Equal(t, domain.SentimentNeutral, stale.Sentiment)

		escalated, err := svc.AppendMessage(ctx, customer, ticket.ID, "I am very unhappy with this")
		require.NoError(t, err)
		require.Equal(t, domain.SentimentNegative, escalated.Sentiment)

		staleSvc := newTestService(&staleReadRepo{fakeTicketRepo: repo, stale: stale}, supportAgents())
		updated, err := staleSvc.AppendMessage(ctx, customer, ticket.ID, "thank you for looking into it")
		require.NoError(t, err)

		assert.Equal(t, domain.SentimentNegative, updated.Sentiment)
		final, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SentimentNegative, final.Sentiment)
	})
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*TicketService, *domain.Ticket) {
		t.Helper()
		svc := newTestService(newFakeTicketRepo(), supportAgents())
		ticket, err := svc.CreateTicket(ctx, customer, TicketCreateInput{Subject: "s", Message: "hello"})
		require.NoError(t, err)
		return svc, ticket
	}

	t.Run("CustomerAlwaysRejected", func(t *testing.T) {
		svc, ticket := setup(t)
		_, err := svc.UpdateStatus(ctx, customer, ticket.ID, "closed")
		requireCode(t, err, "FORBIDDEN")
	})

	t.Run("UnrecognizedStatusRejected", func(t *testing.T) {
		svc, ticket := setup(t)
		_, err := svc.UpdateStatus(ctx, supportUser, ticket.ID, "pending")
		requireCode(t, err, "VALIDATION_FAILED")
	})

	t.Run("UnknownTicketRejected", func(t *testing.T) {
		svc, _ := setup(t)
		_, err := svc.UpdateStatus(ctx, supportUser, "ticket-404", "closed")
		requireCode(t, err, "NOT_FOUND")
	})

	t.Run("SupportMayTransitionBetweenAnyStates", func(t *testing.T) {
		svc, ticket := setup(t)
		for _, status := range []string{"closed", "open", "resolved", "in-progress"} {
			updated, err := svc.UpdateStatus(ctx, supportUser, ticket.ID, status)
			require.NoError(t, err, status)
			assert.Equal(t, domain.TicketStatus(status), updated.Status)
			assert.Equal(t, "Status updated to "+status, updated.History[len(updated.History)-1].Action)
		}
	})

	t.Run("ReopeningKeepsRating", func(t *testing.T) {
		svc, ticket := setup(t)
		_, err := svc.UpdateStatus(ctx, adminUser, ticket.ID, "closed")
		require.NoError(t, err)
		rated, err := svc.SubmitRating(ctx, customer, ticket.ID, 5)
		require.NoError(t, err)
		require.NotNil(t, rated.Rating)

		reopened, err := svc.UpdateStatus(ctx, adminUser, ticket.ID, "open")
		require.NoError(t, err)
		require.NotNil(t, reopened.Rating)
		assert.Equal(t, 5, *reopened.Rating)
	})
}

func TestReassign(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*TicketService, *domain.Ticket) {
		t.Helper()
		svc := newTestService(newFakeTicketRepo(), supportAgents())
		ticket, err := svc.CreateTicket(ctx, customer, TicketCreateInput{Subject: "s", Message: "hello"})
		require.NoError(t, err)
		return svc, ticket
	}

	t.Run("CustomerRejected", func(t *testing.T) {
		svc, ticket := setup(t)
		_, err := svc.Reassign(ctx, customer, ticket.ID, "agent-2")
		requireCode(t, err, "FORBIDDEN")
	})

	t.Run("UnknownAgentRejected", func(t *testing.T) {
		svc, ticket := setup(t)
		_, err := svc.Reassign(ctx, supportUser, ticket.ID, "agent-404")
		requireCode(t, err, "NOT_FOUND")
	})

	t.Run("ExplicitReassignmentRecorded", func(t *testing.T) {
		svc, ticket := setup(t)
		updated, err := svc.Reassign(ctx, adminUser, ticket.ID, "agent-2")
		require.NoError(t, err)
		require.NotNil(t, updated.AssignedTo)
		assert.Equal(t, "agent-2", *updated.AssignedTo)
		assert.Equal(t, "Reassigned to support agent erin", updated.History[len(updated.History)-1].Action)
	})
}

func TestSubmitRating(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*TicketService, *fakeTicketRepo, *domain.Ticket) {
		t.Helper()
		repo := newFakeTicketRepo()
		svc := newTestService(repo, supportAgents())
		ticket, err := svc.CreateTicket(ctx, customer, TicketCreateInput{Subject: "s", Message: "hello"})
		require.NoError(t, err)
		return svc, repo, ticket
	}

	t.Run("OpenTicketRejectedWithoutMutation", func(t *testing.T) {
		svc, repo, ticket := setup(t)
		before, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)

		_, err = svc.SubmitRating(ctx, customer, ticket.ID, 5)
		requireCode(t, err, "VALIDATION_FAILED")

		after, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Nil(t, after.Rating)
		assert.Equal(t, len(before.History), len(after.History))
	})

	t.Run("ClosedTicketRatedOnce", func(t *testing.T) {
		svc, _, ticket := setup(t)
		_, err := svc.UpdateStatus(ctx, supportUser, ticket.ID, "closed")
		require.NoError(t, err)

		rated, err := svc.SubmitRating(ctx, customer, ticket.ID, 4)
		require.NoError(t, err)
		require.NotNil(t, rated.Rating)
		assert.Equal(t, 4, *rated.Rating)
		assert.Equal(t, "Customer submitted rating: 4/5", rated.History[len(rated.History)-1].Action)

		_, err = svc.SubmitRating(ctx, customer, ticket.ID, 2)
		requireCode(t, err, "VALIDATION_FAILED")

		current, err := svc.GetTicket(ctx, customer, ticket.ID)
		require.NoError(t, err)
		require.NotNil(t, current.Rating)
		assert.Equal(t, 4, *current.Rating, "original rating must survive a rejected resubmission")
	})

	t.Run("LostRaceOnRatingIsConflict", func(t *testing.T) {
		repo := newFakeTicketRepo()
		svc := newTestService(repo, supportAgents())
		ticket, err := svc.CreateTicket(ctx, customer, TicketCreateInput{Subject: "s", Message: "hello"})
		require.NoError(t, err)
		_, err = svc.UpdateStatus(ctx, supportUser, ticket.ID, "closed")
		require.NoError(t, err)

		// Snapshot taken while the ticket is closed and unrated; a
		// concurrent rating lands before this caller's write.
		stale, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		_, err = svc.SubmitRating(ctx, customer, ticket.ID, 4)
		require.NoError(t, err)

		staleSvc := newTestService(&staleReadRepo{fakeTicketRepo: repo, stale: stale}, supportAgents())
		_, err = staleSvc.SubmitRating(ctx, customer, ticket.ID, 2)
		requireCode(t, err, "CONFLICT")

		final, err := repo.GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		require.NotNil(t, final.Rating)
		assert.Equal(t, 4, *final.Rating)
	})

	t.Run("NonOwnerRejected", func(t *testing.T) {
		svc, _, ticket := setup(t)
		_, err := svc.UpdateStatus(ctx, supportUser, ticket.ID, "closed")
		require.NoError(t, err)

		_, err = svc.SubmitRating(ctx, otherCustomer, ticket.ID, 3)
		requireCode(t, err, "FORBIDDEN")
	})

	t.Run("NonCustomerRejected", func(t *testing.T) {
		svc, _, ticket := setup(t)
		_, err := svc.SubmitRating(ctx, supportUser, ticket.ID, 3)
		requireCode(t, err, "FORBIDDEN")
	})

	t.Run("OutOfRangeRejected", func(t *testing.T) {
		svc, _, ticket := setup(t)
		for _, rating := range []int{0, 6, -1} {
			_, err := svc.SubmitRating(ctx, customer, ticket.ID, rating)
			requireCode(t, err, "VALIDATION_FAILED")
		}
	})
}

func TestHistoryGrowsOnEveryMutation(t *testing.T) {
	ctx := context.Background()
	repo := newFakeTicketRepo()
	svc := newTestService(repo, supportAgents())

	ticket, err := svc.CreateTicket(ctx, customer, TicketCreateInput{Subject: "s", Message: "hello"})
	require.NoError(t, err)
	prior := append([]domain.HistoryEntry(nil), ticket.History...)

	steps := []func() (*domain.Ticket, error){
		func() (*domain.Ticket, error) { return svc.AppendMessage(ctx, customer, ticket.ID, "any update?") },
		func() (*domain.Ticket, error) { return svc.AppendMessage(ctx, adminUser, ticket.ID, "on it") },
		func() (*domain.Ticket, error) { return svc.UpdateStatus(ctx, supportUser, ticket.ID, "in-progress") },
		func() (*domain.Ticket, error) { return svc.Reassign(ctx, adminUser, ticket.ID, "agent-2") },
		func() (*domain.Ticket, error) { return svc.UpdateStatus(ctx, supportUser, ticket.ID, "closed") },
		func() (*domain.Ticket, error) { return svc.SubmitRating(ctx, customer, ticket.ID, 5) },
	}

	for i, step := range steps {
		updated, err := step()
		require.NoError(t, err, "step %d", i)
		require.Greater(t, len(updated.History), len(prior), "step %d must append history", i)
		assert.Equal(t, prior, updated.History[:len(prior)], "existing entries are never altered")
		prior = append([]domain.HistoryEntry(nil), updated.History...)
	}
}

func TestListTicketsScopedByRole(t *testing.T) {
	ctx := context.Background()
	repo := newFakeTicketRepo()
	svc := newTestService(repo, supportAgents())

	mine, err := svc.CreateTicket(ctx, customer, TicketCreateInput{Subject: "mine", Message: "hello"})
	require.NoError(t, err)
	_, err = svc.CreateTicket(ctx, otherCustomer, TicketCreateInput{Subject: "theirs", Message: "hello"})
	require.NoError(t, err)

	t.Run("CustomerSeesOnlyOwn", func(t *testing.T) {
		tickets, err := svc.ListTickets(ctx, customer, TicketListFilter{})
		require.NoError(t, err)
		require.Len(t, tickets, 1)
		assert.Equal(t, mine.ID, tickets[0].ID)
	})

	t.Run("AdminSeesAll", func(t *testing.T) {
		tickets, err := svc.ListTickets(ctx, adminUser, TicketListFilter{})
		require.NoError(t, err)
		assert.Len(t, tickets, 2)
	})

	t.Run("SupportSeesAssignedOrOwn", func(t *testing.T) {
		tickets, err := svc.ListTickets(ctx, supportUser, TicketListFilter{})
		require.NoError(t, err)
		for _, ticket := range tickets {
			ok := (ticket.AssignedTo != nil && *ticket.AssignedTo == supportUser.ID) ||
				ticket.CustomerID == supportUser.ID
			assert.True(t, ok)
		}
	})

	t.Run("GetTicketEnforcesVisibility", func(t *testing.T) {
		_, err := svc.GetTicket(ctx, otherCustomer, mine.ID)
		requireCode(t, err, "FORBIDDEN")

		got, err := svc.GetTicket(ctx, adminUser, mine.ID)
		require.NoError(t, err)
		assert.Equal(t, mine.ID, got.ID)
	})
}
