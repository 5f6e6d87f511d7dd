// Package dashboard computes read-only projections over the issue store. Every
// call queries current state.
package dashboard

import (
	"context"
	"fmt"
	"sort"

	"civicwatch-be/models"
	"civicwatch-be/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type issueReader interface {
	ListIssues(ctx context.Context, filter store.IssueFilter) ([]models.Issue, error)
	CountIssues(ctx context.Context, filter store.IssueFilter) (int64, error)
	CountIssuesByStatus(ctx context.Context) (map[models.IssueStatus]int64, error)
}

type Aggregator struct {
	store issueReader
}

func NewAggregator(s issueReader) *Aggregator {
	return &Aggregator{store: s}
}

// StatusCount is one row of the per-status breakdown.
type StatusCount struct {
	Status models.IssueStatus `json:"status"`
	Count  int64              `json:"count"`
}

// Summary bundles the moderator dashboard.
type Summary struct {
	StatusCounts      []StatusCount  `json:"statusCounts"`
	Total             int64          `json:"total"`
	UnassignedQueue   []models.Issue `json:"unassignedQueue"`
	UnassignedCount   int            `json:"unassignedCount"`
	HighPriorityOpen  []models.Issue `json:"highPriorityOpen"`
	HighPriorityCount int            `json:"highPriorityCount"`
	EscalationCount   int64          `json:"escalationCount"`
}

// StatusCounts returns every status in progression order, zero-filled.
func (a *Aggregator) StatusCounts(ctx context.Context) ([]StatusCount, error) {
	counts, err := a.store.CountIssuesByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	out := make([]StatusCount, 0, len(models.AllStatuses))
	for _, status := range models.AllStatuses {
		out = append(out, StatusCount{Status: status, Count: counts[status]})
	}
	return out, nil
}

// UnassignedQueue lists Verified issues with no manager, oldest report first.
func (a *Aggregator) UnassignedQueue(ctx context.Context) ([]models.Issue, error) {
	issues, err := a.store.ListIssues(ctx, store.IssueFilter{
		Statuses:       []models.IssueStatus{models.StatusVerified},
		UnassignedOnly: true,
		Sort:           store.SortOldest,
	})
	if err != nil {
		return nil, fmt.Errorf("unassigned queue: %w", err)
	}
	return issues, nil
}

// HighPriorityOpen lists High priority issues that are not terminal.
func (a *Aggregator) HighPriorityOpen(ctx context.Context) ([]models.Issue, error) {
	issues, err := a.store.ListIssues(ctx, store.IssueFilter{
		Priority:        models.PriorityHigh,
		ExcludeStatuses: models.TerminalStatuses,
		Sort:            store.SortOldest,
	})
	if err != nil {
		return nil, fmt.Errorf("high priority queue: %w", err)
	}
	return issues, nil
}

// ManagerQueue lists the manager's open issues by priority, then oldest report.
func (a *Aggregator) ManagerQueue(ctx context.Context, managerID primitive.ObjectID) ([]models.Issue, error) {
	issues, err := a.store.ListIssues(ctx, store.IssueFilter{
		Manager:         &managerID,
		ExcludeStatuses: models.TerminalStatuses,
		Sort:            store.SortOldest,
	})
	if err != nil {
		return nil, fmt.Errorf("manager queue: %w", err)
	}
	sort.SliceStable(issues, func(i, j int) bool {
		ri, rj := issues[i].Priority.Rank(), issues[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return issues[i].ReportedDate.Before(issues[j].ReportedDate)
	})
	return issues, nil
}

// EscalationCount counts issues waiting in Requires Assistance.
func (a *Aggregator) EscalationCount(ctx context.Context) (int64, error) {
	n, err := a.store.CountIssues(ctx, store.IssueFilter{
		Statuses: []models.IssueStatus{models.StatusRequiresAssistance},
	})
	if err != nil {
		return 0, fmt.Errorf("escalation count: %w", err)
	}
	return n, nil
}

func (a *Aggregator) Summary(ctx context.Context) (Summary, error) {
	counts, err := a.StatusCounts(ctx)
	if err != nil {
		return Summary{}, err
	}
	unassigned, err := a.UnassignedQueue(ctx)
	if err != nil {
		return Summary{}, err
	}
	high, err := a.HighPriorityOpen(ctx)
	if err != nil {
		return Summary{}, err
	}
	escalations, err := a.EscalationCount(ctx)
	if err != nil {
		return Summary{}, err
	}

	var total int64
	for _, c := range counts {
		total += c.Count
	}
	return Summary{
		StatusCounts:      counts,
		Total:             total,
		UnassignedQueue:   unassigned,
		UnassignedCount:   len(unassigned),
		HighPriorityOpen:  high,
		HighPriorityCount: len(high),
		EscalationCount:   escalations,
	}, nil
}
