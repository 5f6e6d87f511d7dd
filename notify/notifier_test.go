package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"civicwatch-be/lifecycle"
	"civicwatch-be/models"
	"civicwatch-be/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sent struct {
	templateID string
	data       any
	recipients []string
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (d *recordingDispatcher) Send(_ context.Context, templateID string, data any, recipients []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := Render(templateID, data); err != nil {
		return err
	}
	d.sent = append(d.sent, sent{templateID: templateID, data: data, recipients: recipients})
	return d.err
}

type fixture struct {
	store      *store.MemoryStore
	engine     *lifecycle.Engine
	dispatcher *recordingDispatcher
	notifier   *Notifier
	citizen    models.User
	moderator  models.User
	manager    models.User
	issue      models.Issue
	reported   lifecycle.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: store.NewMemoryStore(), dispatcher: &recordingDispatcher{}}
	f.engine = lifecycle.NewEngine(f.store)
	f.notifier = NewNotifier(f.dispatcher, f.store, "https://civic.test/")

	f.citizen = models.User{Name: "Asha", Email: "asha@city.test", Role: models.RoleCitizen, IsActive: true}
	f.moderator = models.User{Name: "Mira", Email: "mira@city.test", Role: models.RoleModerator, IsStaff: true, IsActive: true}
	f.manager = models.User{Name: "Ravi", Email: "ravi@city.test", Role: models.RoleManager, IsStaff: true, IsActive: true}
	inactive := models.User{Email: "gone@city.test", Role: models.RoleModerator, IsStaff: true}
	noEmail := models.User{Name: "Anon", Role: models.RoleModerator, IsStaff: true, IsActive: true}
	for _, u := range []*models.User{&f.citizen, &f.moderator, &f.manager, &inactive, &noEmail} {
		require.NoError(t, f.store.CreateUser(ctx, u))
	}

	lat, lon := 12.9, 77.5
	issue, ev, err := f.engine.ReportIssue(ctx, f.citizen, lifecycle.ReportInput{
		Title:       "Streetlight out on 5th Cross for the past two weeks, area is pitch dark",
		Description: strings.Repeat("dark ", 60),
		Latitude:    &lat,
		Longitude:   &lon,
	})
	require.NoError(t, err)
	f.issue, f.reported = issue, ev
	return f
}

func (f *fixture) transition(t *testing.T, actor models.User, req lifecycle.TransitionRequest) lifecycle.Event {
	t.Helper()
	_, ev, err := f.engine.ApplyTransition(context.Background(), f.issue.ID, actor, req)
	require.NoError(t, err)
	return ev
}

func TestNewIssueNotifiesActiveStaffWithEmail(t *testing.T) {
	f := newFixture(t)
	f.notifier.HandleEvent(context.Background(), f.reported)

	require.Len(t, f.dispatcher.sent, 1)
	got := f.dispatcher.sent[0]
	assert.Equal(t, TemplateIssueReported, got.templateID)
	assert.ElementsMatch(t, []string{"mira@city.test", "ravi@city.test"}, got.recipients)

	data := got.data.(IssueReportedData)
	assert.Equal(t, "https://civic.test/admin/issues/issue/"+f.issue.ID.Hex()+"/change/", data.AdminURL)
	assert.Equal(t, "Asha", data.ReporterName)
	assert.Equal(t, "N/A", data.CategoryName)
	assert.Len(t, []rune(data.Description), descriptionSnippetLength+3)
}

func TestStatusChangeNotifiesReporterOnce(t *testing.T) {
	f := newFixture(t)
	ev := f.transition(t, f.moderator, lifecycle.TransitionRequest{Status: models.StatusVerified})

	f.notifier.HandleEvent(context.Background(), ev)
	f.notifier.HandleEvent(context.Background(), ev)

	require.Len(t, f.dispatcher.sent, 1)
	got := f.dispatcher.sent[0]
	assert.Equal(t, TemplateStatusChanged, got.templateID)
	assert.Equal(t, []string{"asha@city.test"}, got.recipients)
	data := got.data.(StatusChangedData)
	assert.Equal(t, "Reported", data.OldStatus)
	assert.Equal(t, "Verified", data.NewStatus)
	assert.False(t, data.Resolved)
	assert.False(t, data.Closed)
}

func TestNoOpTransitionSendsNothing(t *testing.T) {
	f := newFixture(t)
	ev := f.transition(t, f.moderator, lifecycle.TransitionRequest{Status: models.StatusReported})

	f.notifier.HandleEvent(context.Background(), ev)
	assert.Empty(t, f.dispatcher.sent)
}

func TestAssignmentNotifiesManagerExactlyOnce(t *testing.T) {
	f := newFixture(t)
	f.transition(t, f.moderator, lifecycle.TransitionRequest{Status: models.StatusVerified})
	ev := f.transition(t, f.moderator, lifecycle.TransitionRequest{AssignManager: &f.manager.ID})

	f.notifier.HandleEvent(context.Background(), ev)

	var assigned, status int
	for _, s := range f.dispatcher.sent {
		switch s.templateID {
		case TemplateManagerAssigned:
			assigned++
			assert.Equal(t, []string{"ravi@city.test"}, s.recipients)
			assert.Equal(t, "Medium", s.data.(ManagerAssignedData).Priority)
		case TemplateStatusChanged:
			status++
			assert.Equal(t, "Assigned", s.data.(StatusChangedData).NewStatus)
		}
	}
	assert.Equal(t, 1, assigned)
	assert.Equal(t, 1, status)
}

func TestResolvedIncludesResolution(t *testing.T) {
	f := newFixture(t)
	f.transition(t, f.moderator, lifecycle.TransitionRequest{AssignManager: &f.manager.ID})
	notes, image := "Bulb replaced", "https://img.civic.test/light.jpg"
	ev := f.transition(t, f.manager, lifecycle.TransitionRequest{Status: models.StatusResolved, ResolutionNotes: &notes, ResolutionImage: &image})

	f.notifier.HandleEvent(context.Background(), ev)

	require.Len(t, f.dispatcher.sent, 1)
	data := f.dispatcher.sent[0].data.(StatusChangedData)
	assert.True(t, data.Resolved)
	assert.True(t, data.Closed)
	assert.Equal(t, notes, data.ResolutionNotes)
	assert.Equal(t, image, data.ResolutionImage)
}

func TestCommentNotifiesReporterUnlessSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, own, err := f.engine.AddComment(ctx, f.issue.ID, f.citizen, "Still dark tonight")
	require.NoError(t, err)
	f.notifier.HandleEvent(ctx, own)
	assert.Empty(t, f.dispatcher.sent)

	_, other, err := f.engine.AddComment(ctx, f.issue.ID, f.manager, strings.Repeat("x", 120))
	require.NoError(t, err)
	f.notifier.HandleEvent(ctx, other)

	require.Len(t, f.dispatcher.sent, 1)
	got := f.dispatcher.sent[0]
	assert.Equal(t, TemplateCommentAdded, got.templateID)
	data := got.data.(CommentAddedData)
	assert.Equal(t, strings.Repeat("x", 100)+"...", data.Snippet)
	assert.Equal(t, "Ravi", data.CommenterName)
	assert.Equal(t, "https://civic.test/issues/"+f.issue.ID.Hex()+"/", data.IssueURL)
}

func TestDispatcherFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.err = errors.New("smtp down")
	ev := f.transition(t, f.moderator, lifecycle.TransitionRequest{Status: models.StatusInvalid})

	assert.NotPanics(t, func() { f.notifier.HandleEvent(context.Background(), ev) })
	assert.Len(t, f.dispatcher.sent, 1)

	stored, err := f.store.GetIssue(context.Background(), f.issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInvalid, stored.Status)
}

func TestSeenEventsAreBounded(t *testing.T) {
	n := NewNotifier(&recordingDispatcher{}, store.NewMemoryStore(), "")
	for i := 0; i < seenEventsLimit+10; i++ {
		require.True(t, n.claim(primitive.NewObjectID().Hex()))
	}
	assert.Len(t, n.order, seenEventsLimit)
	assert.Len(t, n.seen, seenEventsLimit)
}

func TestRenderSubjects(t *testing.T) {
	msg, err := Render(TemplateStatusChanged, StatusChangedData{
		UserName:   "Asha",
		IssueTitle: strings.Repeat("a", 60),
		OldStatus:  "Reported",
		NewStatus:  "Resolved",
		Closed:     true,
		Resolved:   true,
		IssueURL:   "https://civic.test/issues/1/",
	})
	require.NoError(t, err)
	assert.Equal(t, "Update on Your Reported Issue: '"+strings.Repeat("a", 50)+"...'", msg.Subject)
	assert.Contains(t, msg.Text, "from Reported to Resolved. This issue is now closed.")
	assert.Contains(t, msg.HTML, `href="https://civic.test/issues/1/"`)

	msg, err = Render(TemplateIssueReported, IssueReportedData{
		IssueTitle:   "Short <b>title</b>",
		ReporterName: "Asha",
		CategoryName: "Roads",
		ReportedDate: time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC),
		AdminURL:     "https://civic.test/admin/issues/issue/1/change/",
	})
	require.NoError(t, err)
	assert.Equal(t, "New Civic Issue Reported: 'Short <b>title</b>...'", msg.Subject)
	assert.Contains(t, msg.HTML, "Short &lt;b&gt;title&lt;/b&gt;")
	assert.Contains(t, msg.Text, "2026-05-04 10:30")

	_, err = Render("nope", nil)
	assert.Error(t, err)
}
