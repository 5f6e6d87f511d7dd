package lifecycle

import (
	"context"
	"net/http"
	"testing"

	"civicwatch-be/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBulkTransitionContinuesPastFailures(t *testing.T) {
	w := newWorld(t)
	first := w.report(t)
	second := w.report(t)
	missing := primitive.NewObjectID()

	results, err := w.engine.BulkTransition(context.Background(), w.moderator,
		[]primitive.ObjectID{first.ID, missing, second.ID, first.ID}, models.StatusVerified)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	require.NotNil(t, results[0].Event)
	assert.True(t, results[0].Event.StatusChanged)

	requireDomainError(t, results[1].Err, http.StatusNotFound, "issue_not_found")
	assert.Nil(t, results[1].Event)

	assert.NoError(t, results[2].Err)
	assert.Equal(t, models.StatusVerified, results[2].Issue.Status)
	assert.NotEqual(t, results[0].Event.ID, results[2].Event.ID)
}

func TestBulkTransitionRequiresModerator(t *testing.T) {
	w := newWorld(t)
	issue := w.report(t)

	_, err := w.engine.BulkTransition(context.Background(), w.manager, []primitive.ObjectID{issue.ID}, models.StatusResolved)
	requireDomainError(t, err, http.StatusForbidden, "role_cannot_bulk_transition")

	_, err = w.engine.BulkTransition(context.Background(), w.moderator, nil, models.StatusResolved)
	requireDomainError(t, err, http.StatusBadRequest, "no_issues")
}
