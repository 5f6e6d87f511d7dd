package dashboard

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"civicwatch-be/models"
	"civicwatch-be/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fixture struct {
	store    *store.MemoryStore
	reporter models.User
	manager  models.User
	base     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: store.NewMemoryStore(), base: time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)}
	f.reporter = models.User{Email: "citizen@city.test", Role: models.RoleCitizen, IsActive: true}
	f.manager = models.User{Email: "roads@city.test", Role: models.RoleManager, IsStaff: true, IsActive: true}
	require.NoError(t, f.store.CreateUser(context.Background(), &f.reporter))
	require.NoError(t, f.store.CreateUser(context.Background(), &f.manager))
	return f
}

func (f *fixture) add(t *testing.T, status models.IssueStatus, priority models.Priority, manager *primitive.ObjectID, ageHours int) models.Issue {
	t.Helper()
	issue := models.Issue{
		Title:             string(status) + " issue",
		Description:       "fixture",
		Reporter:          f.reporter.ID,
		Status:            status,
		Priority:          priority,
		AssignedToManager: manager,
		ReportedDate:      f.base.Add(-time.Duration(ageHours) * time.Hour),
	}
	require.NoError(t, f.store.CreateIssue(context.Background(), &issue))
	return issue
}

func TestStatusCountsZeroFilled(t *testing.T) {
	f := newFixture(t)
	f.add(t, models.StatusReported, models.PriorityMedium, nil, 1)
	f.add(t, models.StatusReported, models.PriorityLow, nil, 2)
	f.add(t, models.StatusResolved, models.PriorityLow, nil, 3)

	counts, err := NewAggregator(f.store).StatusCounts(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, len(models.AllStatuses))

	byStatus := map[models.IssueStatus]int64{}
	for _, c := range counts {
		byStatus[c.Status] = c.Count
	}
	assert.Equal(t, int64(2), byStatus[models.StatusReported])
	assert.Equal(t, int64(1), byStatus[models.StatusResolved])
	assert.Equal(t, int64(0), byStatus[models.StatusInvalid])
	assert.Equal(t, models.StatusReported, counts[0].Status)
}

func TestUnassignedQueueMatchesDefinition(t *testing.T) {
	f := newFixture(t)
	rng := rand.New(rand.NewSource(7))
	priorities := []models.Priority{models.PriorityLow, models.PriorityMedium, models.PriorityHigh}

	var want int
	for i := 0; i < 80; i++ {
		status := models.AllStatuses[rng.Intn(len(models.AllStatuses))]
		var manager *primitive.ObjectID
		if rng.Intn(2) == 0 {
			manager = &f.manager.ID
		}
		if status == models.StatusVerified && manager == nil {
			want++
		}
		f.add(t, status, priorities[rng.Intn(len(priorities))], manager, i)
	}

	queue, err := NewAggregator(f.store).UnassignedQueue(context.Background())
	require.NoError(t, err)
	assert.Len(t, queue, want)
	for _, issue := range queue {
		assert.Equal(t, models.StatusVerified, issue.Status)
		assert.Nil(t, issue.AssignedToManager)
	}
}

func TestHighPriorityOpenExcludesTerminal(t *testing.T) {
	f := newFixture(t)
	open := f.add(t, models.StatusWorkInProgress, models.PriorityHigh, &f.manager.ID, 1)
	f.add(t, models.StatusResolved, models.PriorityHigh, &f.manager.ID, 2)
	f.add(t, models.StatusDuplicate, models.PriorityHigh, nil, 3)
	f.add(t, models.StatusReported, models.PriorityMedium, nil, 4)

	issues, err := NewAggregator(f.store).HighPriorityOpen(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, open.ID, issues[0].ID)
}

func TestManagerQueueOrdering(t *testing.T) {
	f := newFixture(t)
	lowOld := f.add(t, models.StatusAssigned, models.PriorityLow, &f.manager.ID, 50)
	highNew := f.add(t, models.StatusWorkInProgress, models.PriorityHigh, &f.manager.ID, 1)
	highOld := f.add(t, models.StatusManagerAcknowledged, models.PriorityHigh, &f.manager.ID, 10)
	medium := f.add(t, models.StatusAwaitingResources, models.PriorityMedium, &f.manager.ID, 5)
	f.add(t, models.StatusResolved, models.PriorityHigh, &f.manager.ID, 100)
	f.add(t, models.StatusAssigned, models.PriorityHigh, nil, 100)

	queue, err := NewAggregator(f.store).ManagerQueue(context.Background(), f.manager.ID)
	require.NoError(t, err)

	ids := make([]primitive.ObjectID, len(queue))
	for i, issue := range queue {
		ids[i] = issue.ID
	}
	assert.Equal(t, []primitive.ObjectID{highOld.ID, highNew.ID, medium.ID, lowOld.ID}, ids)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	f.add(t, models.StatusVerified, models.PriorityHigh, nil, 1)
	f.add(t, models.StatusRequiresAssistance, models.PriorityMedium, &f.manager.ID, 2)
	f.add(t, models.StatusRequiresAssistance, models.PriorityLow, &f.manager.ID, 3)

	summary, err := NewAggregator(f.store).Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Total)
	assert.Equal(t, 1, summary.UnassignedCount)
	assert.Equal(t, 1, summary.HighPriorityCount)
	assert.Equal(t, int64(2), summary.EscalationCount)
}
