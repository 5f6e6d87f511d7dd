package geocode

import (
	"context"
	"log"
	"time"

	"civicwatch-be/lifecycle"
	"civicwatch-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type issueStore interface {
	GetIssue(ctx context.Context, id primitive.ObjectID) (models.Issue, error)
	SetMunicipalArea(ctx context.Context, id primitive.ObjectID, area string, at time.Time) (bool, error)
}

// Enricher fills Issue.MunicipalArea once after an issue is reported. The write
// goes straight to the store and produces no lifecycle event.
type Enricher struct {
	resolver Resolver
	store    issueStore
	timeout  time.Duration
	now      func() time.Time
}

func NewEnricher(resolver Resolver, store issueStore, timeout time.Duration) *Enricher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Enricher{resolver: resolver, store: store, timeout: timeout, now: time.Now}
}

// HandleEvent is an events.Handler for issue.reported.
func (e *Enricher) HandleEvent(ctx context.Context, ev lifecycle.Event) {
	if ev.Kind != lifecycle.KindIssueReported || ev.Issue.MunicipalArea != "" {
		return
	}
	if _, err := e.enrich(ctx, ev.Issue); err != nil {
		log.Printf("[GEOCODE] issue %s: %v", ev.IssueID.Hex(), err)
	}
}

// Enrich resolves the area for an issue that still has none. An issue that
// already carries an area is returned unchanged.
func (e *Enricher) Enrich(ctx context.Context, id primitive.ObjectID) (models.Issue, error) {
	issue, err := e.store.GetIssue(ctx, id)
	if err != nil {
		return models.Issue{}, err
	}
	if issue.MunicipalArea != "" {
		return issue, nil
	}
	return e.enrich(ctx, issue)
}

func (e *Enricher) enrich(ctx context.Context, issue models.Issue) (models.Issue, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, e.timeout)
	area, ok := e.resolver.Resolve(lookupCtx, issue.Latitude, issue.Longitude)
	cancel()
	if !ok {
		log.Printf("[GEOCODE] no area for issue %s at (%v, %v)", issue.ID.Hex(), issue.Latitude, issue.Longitude)
		return issue, nil
	}

	updated, err := e.store.SetMunicipalArea(ctx, issue.ID, area, e.now().UTC())
	if err != nil {
		return issue, err
	}
	if updated {
		issue.MunicipalArea = area
		log.Printf("[GEOCODE] issue %s is in %s", issue.ID.Hex(), area)
		return issue, nil
	}
	return e.store.GetIssue(ctx, issue.ID)
}
