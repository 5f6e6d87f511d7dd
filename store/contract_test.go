package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"civicwatch-be/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fixture struct {
	citizen  models.User
	manager  models.User
	category models.IssueCategory
	issue    models.Issue
}

func seed(t *testing.T, s Store) fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	citizen := models.User{Name: "Asha", Email: primitive.NewObjectID().Hex() + "@citizen.test", Role: models.RoleCitizen, IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateUser(ctx, &citizen))
	manager := models.User{Name: "Ravi", Email: primitive.NewObjectID().Hex() + "@manager.test", Role: models.RoleManager, IsStaff: true, IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateUser(ctx, &manager))

	category := models.IssueCategory{Name: "Road " + primitive.NewObjectID().Hex(), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateCategory(ctx, &category))

	issue := models.Issue{
		Title:        "Pothole on Main St",
		Description:  "Large pothole near the bus stop",
		Reporter:     citizen.ID,
		Category:     &category.ID,
		Latitude:     12.9715987,
		Longitude:    77.5945627,
		Status:       models.StatusReported,
		Priority:     models.PriorityMedium,
		ReportedDate: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.CreateIssue(ctx, &issue))

	return fixture{citizen: citizen, manager: manager, category: category, issue: issue}
}

// runStoreContract exercises behaviour every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("conditional update applies when state matches", func(t *testing.T) {
		s := newStore(t)
		f := seed(t, s)
		ctx := context.Background()

		notes := "confirmed by field team"
		updated, err := s.UpdateIssueIfMatches(ctx, f.issue.ID,
			Expectation{Status: models.StatusReported},
			IssueUpdate{Status: models.StatusAssigned, Manager: &f.manager.ID, Priority: models.PriorityHigh, InternalNotes: &notes, UpdatedAt: time.Now().UTC()},
		)
		require.NoError(t, err)
		assert.Equal(t, models.StatusAssigned, updated.Status)
		require.NotNil(t, updated.AssignedToManager)
		assert.Equal(t, f.manager.ID, *updated.AssignedToManager)
		assert.Equal(t, models.PriorityHigh, updated.Priority)
		assert.Equal(t, notes, updated.InternalNotes)
	})

	t.Run("conditional update conflicts on stale state", func(t *testing.T) {
		s := newStore(t)
		f := seed(t, s)
		ctx := context.Background()

		_, err := s.UpdateIssueIfMatches(ctx, f.issue.ID,
			Expectation{Status: models.StatusVerified},
			IssueUpdate{Status: models.StatusResolved, Priority: models.PriorityMedium, UpdatedAt: time.Now().UTC()},
		)
		assert.ErrorIs(t, err, ErrConflict)

		_, err = s.UpdateIssueIfMatches(ctx, f.issue.ID,
			Expectation{Status: models.StatusReported, Manager: &f.manager.ID},
			IssueUpdate{Status: models.StatusResolved, Priority: models.PriorityMedium, UpdatedAt: time.Now().UTC()},
		)
		assert.ErrorIs(t, err, ErrConflict)

		got, err := s.GetIssue(ctx, f.issue.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusReported, got.Status)
	})

	t.Run("conditional update on missing issue", func(t *testing.T) {
		s := newStore(t)
		_, err := s.UpdateIssueIfMatches(context.Background(), primitive.NewObjectID(),
			Expectation{Status: models.StatusReported},
			IssueUpdate{Status: models.StatusVerified, Priority: models.PriorityMedium, UpdatedAt: time.Now().UTC()},
		)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("toggle upvote twice restores state", func(t *testing.T) {
		s := newStore(t)
		f := seed(t, s)
		ctx := context.Background()

		res, err := s.ToggleUpvote(ctx, f.issue.ID, f.citizen.ID, time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, UpvoteResult{Upvoted: true, Count: 1}, res)

		has, err := s.HasUpvoted(ctx, f.issue.ID, f.citizen.ID)
		require.NoError(t, err)
		assert.True(t, has)

		res, err = s.ToggleUpvote(ctx, f.issue.ID, f.citizen.ID, time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, UpvoteResult{Upvoted: false, Count: 0}, res)

		n, err := s.CountUpvotes(ctx, f.issue.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("concurrent toggles keep counter consistent", func(t *testing.T) {
		s := newStore(t)
		f := seed(t, s)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 7; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.ToggleUpvote(ctx, f.issue.ID, f.citizen.ID, time.Now().UTC())
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		issue, err := s.GetIssue(ctx, f.issue.ID)
		require.NoError(t, err)
		rows, err := s.CountUpvotes(ctx, f.issue.ID)
		require.NoError(t, err)
		assert.Equal(t, rows, issue.UpvotesCount)
		assert.Equal(t, 1, rows)
	})

	t.Run("concurrent removals by one user do not double decrement", func(t *testing.T) {
		s := newStore(t)
		f := seed(t, s)
		ctx := context.Background()
		now := time.Now().UTC()

		for i := 0; i < 4; i++ {
			other := models.User{Name: "Neighbour", Email: primitive.NewObjectID().Hex() + "@citizen.test", Role: models.RoleCitizen, IsActive: true, CreatedAt: now, UpdatedAt: now}
			require.NoError(t, s.CreateUser(ctx, &other))
			_, err := s.ToggleUpvote(ctx, f.issue.ID, other.ID, now)
			require.NoError(t, err)
		}
		res, err := s.ToggleUpvote(ctx, f.issue.ID, f.citizen.ID, now)
		require.NoError(t, err)
		require.Equal(t, UpvoteResult{Upvoted: true, Count: 5}, res)

		var wg sync.WaitGroup
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.ToggleUpvote(ctx, f.issue.ID, f.citizen.ID, time.Now().UTC())
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		issue, err := s.GetIssue(ctx, f.issue.ID)
		require.NoError(t, err)
		rows, err := s.CountUpvotes(ctx, f.issue.ID)
		require.NoError(t, err)
		assert.Equal(t, rows, issue.UpvotesCount)
		assert.Equal(t, 5, rows)

		has, err := s.HasUpvoted(ctx, f.issue.ID, f.citizen.ID)
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("toggle on missing issue", func(t *testing.T) {
		s := newStore(t)
		f := seed(t, s)
		_, err := s.ToggleUpvote(context.Background(), primitive.NewObjectID(), f.citizen.ID, time.Now().UTC())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("municipal area is written once", func(t *testing.T) {
		s := newStore(t)
		f := seed(t, s)
		ctx := context.Background()

		written, err := s.SetMunicipalArea(ctx, f.issue.ID, "Ward 12", time.Now().UTC())
		require.NoError(t, err)
		assert.True(t, written)

		written, err = s.SetMunicipalArea(ctx, f.issue.ID, "Ward 99", time.Now().UTC())
		require.NoError(t, err)
		assert.False(t, written)

		got, err := s.GetIssue(ctx, f.issue.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ward 12", got.MunicipalArea)
	})

	t.Run("filters and counts", func(t *testing.T) {
		s := newStore(t)
		f := seed(t, s)
		ctx := context.Background()

		_, err := s.UpdateIssueIfMatches(ctx, f.issue.ID,
			Expectation{Status: models.StatusReported},
			IssueUpdate{Status: models.StatusAssigned, Manager: &f.manager.ID, Priority: models.PriorityHigh, UpdatedAt: time.Now().UTC()},
		)
		require.NoError(t, err)

		unassigned, err := s.CountIssues(ctx, IssueFilter{UnassignedOnly: true})
		require.NoError(t, err)
		assert.Zero(t, unassigned)

		mine, err := s.ListIssues(ctx, IssueFilter{Manager: &f.manager.ID, ExcludeStatuses: models.TerminalStatuses})
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, f.issue.ID, mine[0].ID)

		found, err := s.ListIssues(ctx, IssueFilter{Search: "POTHOLE"})
		require.NoError(t, err)
		assert.Len(t, found, 1)

		counts, err := s.CountIssuesByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[models.StatusAssigned])
	})

	t.Run("comments listed oldest first", func(t *testing.T) {
		s := newStore(t)
		f := seed(t, s)
		ctx := context.Background()
		base := time.Now().UTC().Truncate(time.Millisecond)

		second := models.Comment{Issue: f.issue.ID, Author: f.citizen.ID, Text: "second", CreatedAt: base.Add(time.Minute)}
		first := models.Comment{Issue: f.issue.ID, Author: f.manager.ID, Text: "first", CreatedAt: base}
		require.NoError(t, s.CreateComment(ctx, &second))
		require.NoError(t, s.CreateComment(ctx, &first))

		comments, err := s.ListComments(ctx, f.issue.ID)
		require.NoError(t, err)
		require.Len(t, comments, 2)
		assert.Equal(t, "first", comments[0].Text)
		assert.Equal(t, "second", comments[1].Text)
	})

	t.Run("duplicate category name", func(t *testing.T) {
		s := newStore(t)
		f := seed(t, s)
		dup := models.IssueCategory{Name: f.category.Name}
		assert.ErrorIs(t, s.CreateCategory(context.Background(), &dup), ErrDuplicate)
	})

	t.Run("deleting category detaches issues", func(t *testing.T) {
		s := newStore(t)
		f := seed(t, s)
		ctx := context.Background()

		require.NoError(t, s.DeleteCategory(ctx, f.category.ID))
		got, err := s.GetIssue(ctx, f.issue.ID)
		require.NoError(t, err)
		assert.Nil(t, got.Category)
	})

	t.Run("deleting issue cascades children", func(t *testing.T) {
		s := newStore(t)
		f := seed(t, s)
		ctx := context.Background()

		_, err := s.ToggleUpvote(ctx, f.issue.ID, f.citizen.ID, time.Now().UTC())
		require.NoError(t, err)
		require.NoError(t, s.CreateComment(ctx, &models.Comment{Issue: f.issue.ID, Author: f.citizen.ID, Text: "hello", CreatedAt: time.Now().UTC()}))
		require.NoError(t, s.AddImage(ctx, &models.IssueImage{Issue: f.issue.ID, URL: "https://img.test/1.jpg", CreatedAt: time.Now().UTC()}))

		require.NoError(t, s.DeleteIssue(ctx, f.issue.ID))

		_, err = s.GetIssue(ctx, f.issue.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		comments, err := s.ListComments(ctx, f.issue.ID)
		require.NoError(t, err)
		assert.Empty(t, comments)
		images, err := s.ListImages(ctx, f.issue.ID)
		require.NoError(t, err)
		assert.Empty(t, images)
		has, err := s.HasUpvoted(ctx, f.issue.ID, f.citizen.ID)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("deleting user releases upvotes and assignments", func(t *testing.T) {
		s := newStore(t)
		f := seed(t, s)
		ctx := context.Background()

		_, err := s.ToggleUpvote(ctx, f.issue.ID, f.manager.ID, time.Now().UTC())
		require.NoError(t, err)
		_, err = s.UpdateIssueIfMatches(ctx, f.issue.ID,
			Expectation{Status: models.StatusReported},
			IssueUpdate{Status: models.StatusAssigned, Manager: &f.manager.ID, Priority: models.PriorityMedium, UpdatedAt: time.Now().UTC()},
		)
		require.NoError(t, err)

		require.NoError(t, s.DeleteUser(ctx, f.manager.ID))

		got, err := s.GetIssue(ctx, f.issue.ID)
		require.NoError(t, err)
		assert.Nil(t, got.AssignedToManager)
		assert.Zero(t, got.UpvotesCount)
	})

	t.Run("deleting reporter removes their issues", func(t *testing.T) {
		s := newStore(t)
		f := seed(t, s)
		ctx := context.Background()

		require.NoError(t, s.DeleteUser(ctx, f.citizen.ID))
		_, err := s.GetIssue(ctx, f.issue.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("reconcile restores counter from rows", func(t *testing.T) {
		s := newStore(t)
		f := seed(t, s)
		ctx := context.Background()

		_, err := s.ToggleUpvote(ctx, f.issue.ID, f.citizen.ID, time.Now().UTC())
		require.NoError(t, err)
		_, err = s.ToggleUpvote(ctx, f.issue.ID, f.manager.ID, time.Now().UTC())
		require.NoError(t, err)

		n, err := s.ReconcileUpvotes(ctx, f.issue.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}
