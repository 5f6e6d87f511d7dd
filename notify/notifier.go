package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"civicwatch-be/lifecycle"
	"civicwatch-be/models"
	"civicwatch-be/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	descriptionSnippetLength = 150
	commentSnippetLength     = 100
	seenEventsLimit          = 4096
)

type directory interface {
	GetUser(ctx context.Context, id primitive.ObjectID) (models.User, error)
	ListUsers(ctx context.Context, filter store.UserFilter) ([]models.User, error)
	GetCategory(ctx context.Context, id primitive.ObjectID) (models.IssueCategory, error)
}

// Notifier turns lifecycle events into emails. Each (event, rule) pair is sent
// at most once. Send failures are logged and dropped.
type Notifier struct {
	dispatcher Dispatcher
	directory  directory
	siteURL    string

	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

func NewNotifier(dispatcher Dispatcher, dir directory, siteURL string) *Notifier {
	return &Notifier{
		dispatcher: dispatcher,
		directory:  dir,
		siteURL:    strings.TrimRight(siteURL, "/"),
		seen:       make(map[string]struct{}),
	}
}

// HandleEvent is an events.Handler.
func (n *Notifier) HandleEvent(ctx context.Context, ev lifecycle.Event) {
	switch ev.Kind {
	case lifecycle.KindIssueReported:
		n.once(ev, TemplateIssueReported, func() error { return n.issueReported(ctx, ev) })
	case lifecycle.KindIssueTransitioned:
		if ev.StatusChanged {
			n.once(ev, TemplateStatusChanged, func() error { return n.statusChanged(ctx, ev) })
		}
		if ev.ManagerAssigned {
			n.once(ev, TemplateManagerAssigned, func() error { return n.managerAssigned(ctx, ev) })
		}
	case lifecycle.KindCommentAdded:
		n.once(ev, TemplateCommentAdded, func() error { return n.commentAdded(ctx, ev) })
	}
}

func (n *Notifier) once(ev lifecycle.Event, rule string, send func() error) {
	key := ev.ID + "/" + rule
	if !n.claim(key) {
		return
	}
	if err := send(); err != nil {
		log.Printf("[NOTIFY] %s for issue %s (event %s) failed: %v", rule, ev.IssueID.Hex(), ev.ID, err)
	}
}

func (n *Notifier) claim(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.seen[key]; ok {
		return false
	}
	n.seen[key] = struct{}{}
	n.order = append(n.order, key)
	if len(n.order) > seenEventsLimit {
		delete(n.seen, n.order[0])
		n.order = n.order[1:]
	}
	return true
}

func (n *Notifier) issueURL(id primitive.ObjectID) string {
	return fmt.Sprintf("%s/issues/%s/", n.siteURL, id.Hex())
}

func (n *Notifier) adminURL(id primitive.ObjectID) string {
	return fmt.Sprintf("%s/admin/issues/issue/%s/change/", n.siteURL, id.Hex())
}

func (n *Notifier) statusChanged(ctx context.Context, ev lifecycle.Event) error {
	reporter, err := n.directory.GetUser(ctx, ev.Issue.Reporter)
	if err != nil {
		return fmt.Errorf("load reporter: %w", err)
	}
	if reporter.Email == "" {
		log.Printf("[NOTIFY] reporter of issue %s has no email, skipping status update", ev.IssueID.Hex())
		return nil
	}

	data := StatusChangedData{
		UserName:   reporter.DisplayName(),
		IssueTitle: ev.Issue.Title,
		OldStatus:  ev.PreviousStatus.Display(),
		NewStatus:  ev.NewStatus.Display(),
		Closed:     ev.NewStatus.IsTerminal(),
		IssueURL:   n.issueURL(ev.IssueID),
	}
	if ev.NewStatus == models.StatusResolved && ev.Resolution != nil {
		data.Resolved = true
		data.ResolutionNotes = ev.Resolution.Notes
		data.ResolutionImage = ev.Resolution.ImageURL
	}
	return n.dispatcher.Send(ctx, TemplateStatusChanged, data, []string{reporter.Email})
}

func (n *Notifier) managerAssigned(ctx context.Context, ev lifecycle.Event) error {
	if ev.NewManager == nil {
		return nil
	}
	manager, err := n.directory.GetUser(ctx, *ev.NewManager)
	if err != nil {
		return fmt.Errorf("load manager: %w", err)
	}
	if manager.Email == "" {
		log.Printf("[NOTIFY] manager %s has no email, skipping assignment notice", manager.ID.Hex())
		return nil
	}

	data := ManagerAssignedData{
		ManagerName: manager.DisplayName(),
		IssueTitle:  ev.Issue.Title,
		Description: models.Snippet(ev.Issue.Description, descriptionSnippetLength),
		Priority:    string(ev.Issue.Priority),
		Status:      ev.NewStatus.Display(),
		IssueURL:    n.adminURL(ev.IssueID),
	}
	return n.dispatcher.Send(ctx, TemplateManagerAssigned, data, []string{manager.Email})
}

func (n *Notifier) issueReported(ctx context.Context, ev lifecycle.Event) error {
	staff, err := n.directory.ListUsers(ctx, store.UserFilter{StaffOnly: true, ActiveOnly: true})
	if err != nil {
		return fmt.Errorf("load staff: %w", err)
	}
	recipients := make([]string, 0, len(staff))
	for _, u := range staff {
		if u.Email != "" {
			recipients = append(recipients, u.Email)
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	reporterName := "unknown"
	if reporter, err := n.directory.GetUser(ctx, ev.Issue.Reporter); err == nil {
		reporterName = reporter.DisplayName()
	}
	categoryName := "N/A"
	if ev.Issue.Category != nil {
		if category, err := n.directory.GetCategory(ctx, *ev.Issue.Category); err == nil {
			categoryName = category.Name
		}
	}

	data := IssueReportedData{
		IssueTitle:   ev.Issue.Title,
		Description:  models.Snippet(ev.Issue.Description, descriptionSnippetLength),
		ReporterName: reporterName,
		CategoryName: categoryName,
		ReportedDate: ev.Issue.ReportedDate,
		AdminURL:     n.adminURL(ev.IssueID),
	}
	return n.dispatcher.Send(ctx, TemplateIssueReported, data, recipients)
}

func (n *Notifier) commentAdded(ctx context.Context, ev lifecycle.Event) error {
	if ev.Comment == nil || ev.Comment.Author == ev.Issue.Reporter {
		return nil
	}
	reporter, err := n.directory.GetUser(ctx, ev.Issue.Reporter)
	if err != nil {
		return fmt.Errorf("load reporter: %w", err)
	}
	if reporter.Email == "" {
		return nil
	}
	commenterName := "Someone"
	if commenter, err := n.directory.GetUser(ctx, ev.Comment.Author); err == nil {
		commenterName = commenter.DisplayName()
	}

	data := CommentAddedData{
		ReporterName:  reporter.DisplayName(),
		IssueTitle:    ev.Issue.Title,
		CommenterName: commenterName,
		Snippet:       models.Snippet(ev.Comment.Text, commentSnippetLength),
		IssueURL:      n.issueURL(ev.IssueID),
	}
	return n.dispatcher.Send(ctx, TemplateCommentAdded, data, []string{reporter.Email})
}
