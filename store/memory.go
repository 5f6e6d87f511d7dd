package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"civicwatch-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type upvoteKey struct {
	issue primitive.ObjectID
	user  primitive.ObjectID
}

// MemoryStore keeps everything in process behind one mutex. It enforces the
// same uniqueness and cascade rules as the database backends and is used for
// local runs (STORE_DRIVER=memory) and tests.
type MemoryStore struct {
	mu         sync.Mutex
	users      map[primitive.ObjectID]models.User
	categories map[primitive.ObjectID]models.IssueCategory
	issues     map[primitive.ObjectID]models.Issue
	upvotes    map[upvoteKey]models.Upvote
	comments   map[primitive.ObjectID]models.Comment
	images     map[primitive.ObjectID]models.IssueImage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[primitive.ObjectID]models.User),
		categories: make(map[primitive.ObjectID]models.IssueCategory),
		issues:     make(map[primitive.ObjectID]models.Issue),
		upvotes:    make(map[upvoteKey]models.Upvote),
		comments:   make(map[primitive.ObjectID]models.Comment),
		images:     make(map[primitive.ObjectID]models.IssueImage),
	}
}

func (s *MemoryStore) Ping(context.Context) error  { return nil }
func (s *MemoryStore) Close(context.Context) error { return nil }

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id primitive.ObjectID) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) ListUsers(_ context.Context, filter UserFilter) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]models.User, 0)
	for _, user := range s.users {
		if filter.Role != "" && user.Role != filter.Role {
			continue
		}
		if filter.StaffOnly && !user.IsStaff {
			continue
		}
		if filter.ActiveOnly && !user.IsActive {
			continue
		}
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	for issueID, issue := range s.issues {
		if issue.Reporter == id {
			s.deleteIssueLocked(issueID)
		}
	}
	for commentID, comment := range s.comments {
		if comment.Author == id {
			delete(s.comments, commentID)
		}
	}
	touched := make(map[primitive.ObjectID]struct{})
	for key := range s.upvotes {
		if key.user == id {
			delete(s.upvotes, key)
			touched[key.issue] = struct{}{}
		}
	}
	for issueID := range touched {
		s.recountLocked(issueID)
	}
	for issueID, issue := range s.issues {
		if issue.AssignedTo(id) {
			issue.AssignedToManager = nil
			s.issues[issueID] = issue
		}
	}
	delete(s.users, id)
	return nil
}

func (s *MemoryStore) CreateCategory(_ context.Context, category *models.IssueCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.categories {
		if existing.Name == category.Name {
			return ErrDuplicate
		}
	}
	if category.ID.IsZero() {
		category.ID = primitive.NewObjectID()
	}
	s.categories[category.ID] = *category
	return nil
}

func (s *MemoryStore) GetCategory(_ context.Context, id primitive.ObjectID) (models.IssueCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	category, ok := s.categories[id]
	if !ok {
		return models.IssueCategory{}, ErrNotFound
	}
	return category, nil
}

func (s *MemoryStore) ListCategories(context.Context) ([]models.IssueCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	categories := make([]models.IssueCategory, 0, len(s.categories))
	for _, category := range s.categories {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (s *MemoryStore) DeleteCategory(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return ErrNotFound
	}
	delete(s.categories, id)
	for issueID, issue := range s.issues {
		if issue.Category != nil && *issue.Category == id {
			issue.Category = nil
			s.issues[issueID] = issue
		}
	}
	return nil
}

func (s *MemoryStore) CreateIssue(_ context.Context, issue *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[issue.Reporter]; !ok {
		return ErrNotFound
	}
	if issue.Category != nil {
		if _, ok := s.categories[*issue.Category]; !ok {
			return ErrNotFound
		}
	}
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	s.issues[issue.ID] = cloneIssue(*issue)
	return nil
}

func (s *MemoryStore) GetIssue(_ context.Context, id primitive.ObjectID) (models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[id]
	if !ok {
		return models.Issue{}, ErrNotFound
	}
	return cloneIssue(issue), nil
}

func (s *MemoryStore) ListIssues(_ context.Context, filter IssueFilter) ([]models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issues := s.matchLocked(filter)
	sort.SliceStable(issues, func(i, j int) bool {
		if filter.Sort == SortOldest {
			return issues[i].ReportedDate.Before(issues[j].ReportedDate)
		}
		return issues[i].ReportedDate.After(issues[j].ReportedDate)
	})
	if filter.Skip > 0 {
		if filter.Skip >= len(issues) {
			return []models.Issue{}, nil
		}
		issues = issues[filter.Skip:]
	}
	if filter.Limit > 0 && len(issues) > filter.Limit {
		issues = issues[:filter.Limit]
	}
	return issues, nil
}

func (s *MemoryStore) CountIssues(_ context.Context, filter IssueFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return int64(len(s.matchLocked(filter))), nil
}

func (s *MemoryStore) CountIssuesByStatus(context.Context) (map[models.IssueStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[models.IssueStatus]int64)
	for _, issue := range s.issues {
		counts[issue.Status]++
	}
	return counts, nil
}

func (s *MemoryStore) UpdateIssueIfMatches(_ context.Context, id primitive.ObjectID, expect Expectation, update IssueUpdate) (models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[id]
	if !ok {
		return models.Issue{}, ErrNotFound
	}
	if issue.Status != expect.Status || !models.SameManager(issue.AssignedToManager, expect.Manager) {
		return models.Issue{}, ErrConflict
	}
	if update.Manager != nil {
		if _, ok := s.users[*update.Manager]; !ok {
			return models.Issue{}, ErrNotFound
		}
	}

	issue.Status = update.Status
	issue.AssignedToManager = cloneID(update.Manager)
	issue.Priority = update.Priority
	if update.InternalNotes != nil {
		issue.InternalNotes = *update.InternalNotes
	}
	if update.ResolutionNotes != nil {
		issue.ResolutionNotes = *update.ResolutionNotes
	}
	if update.ResolutionImage != nil {
		issue.ResolutionImage = *update.ResolutionImage
	}
	issue.UpdatedAt = update.UpdatedAt
	s.issues[id] = issue
	return cloneIssue(issue), nil
}

func (s *MemoryStore) SetMunicipalArea(_ context.Context, id primitive.ObjectID, area string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[id]
	if !ok {
		return false, ErrNotFound
	}
	if issue.MunicipalArea != "" {
		return false, nil
	}
	issue.MunicipalArea = area
	issue.UpdatedAt = at
	s.issues[id] = issue
	return true, nil
}

func (s *MemoryStore) DeleteIssue(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issues[id]; !ok {
		return ErrNotFound
	}
	s.deleteIssueLocked(id)
	return nil
}

func (s *MemoryStore) ToggleUpvote(_ context.Context, issueID, userID primitive.ObjectID, at time.Time) (UpvoteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[issueID]
	if !ok {
		return UpvoteResult{}, ErrNotFound
	}
	if _, ok := s.users[userID]; !ok {
		return UpvoteResult{}, ErrNotFound
	}

	key := upvoteKey{issue: issueID, user: userID}
	if _, exists := s.upvotes[key]; exists {
		delete(s.upvotes, key)
		if issue.UpvotesCount > 0 {
			issue.UpvotesCount--
		}
		issue.UpdatedAt = at
		s.issues[issueID] = issue
		return UpvoteResult{Upvoted: false, Count: issue.UpvotesCount}, nil
	}

	s.upvotes[key] = models.Upvote{ID: primitive.NewObjectID(), Issue: issueID, User: userID, CreatedAt: at}
	issue.UpvotesCount++
	issue.UpdatedAt = at
	s.issues[issueID] = issue
	return UpvoteResult{Upvoted: true, Count: issue.UpvotesCount}, nil
}

func (s *MemoryStore) HasUpvoted(_ context.Context, issueID, userID primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.upvotes[upvoteKey{issue: issueID, user: userID}]
	return ok, nil
}

func (s *MemoryStore) CountUpvotes(_ context.Context, issueID primitive.ObjectID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.countUpvotesLocked(issueID), nil
}

func (s *MemoryStore) ReconcileUpvotes(_ context.Context, issueID primitive.ObjectID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issues[issueID]; !ok {
		return 0, ErrNotFound
	}
	return s.recountLocked(issueID), nil
}

func (s *MemoryStore) CreateComment(_ context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issues[comment.Issue]; !ok {
		return ErrNotFound
	}
	if _, ok := s.users[comment.Author]; !ok {
		return ErrNotFound
	}
	if comment.ID.IsZero() {
		comment.ID = primitive.NewObjectID()
	}
	s.comments[comment.ID] = *comment
	return nil
}

func (s *MemoryStore) ListComments(_ context.Context, issueID primitive.ObjectID) ([]models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comments := make([]models.Comment, 0)
	for _, comment := range s.comments {
		if comment.Issue == issueID {
			comments = append(comments, comment)
		}
	}
	sort.SliceStable(comments, func(i, j int) bool {
		if comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].ID.Hex() < comments[j].ID.Hex()
		}
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

func (s *MemoryStore) AddImage(_ context.Context, image *models.IssueImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issues[image.Issue]; !ok {
		return ErrNotFound
	}
	if image.ID.IsZero() {
		image.ID = primitive.NewObjectID()
	}
	s.images[image.ID] = *image
	return nil
}

func (s *MemoryStore) ListImages(_ context.Context, issueID primitive.ObjectID) ([]models.IssueImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	images := make([]models.IssueImage, 0)
	for _, image := range s.images {
		if image.Issue == issueID {
			images = append(images, image)
		}
	}
	sort.SliceStable(images, func(i, j int) bool { return images[i].CreatedAt.Before(images[j].CreatedAt) })
	return images, nil
}

func (s *MemoryStore) matchLocked(filter IssueFilter) []models.Issue {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	issues := make([]models.Issue, 0)
	for _, issue := range s.issues {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, issue.Status) {
			continue
		}
		if containsStatus(filter.ExcludeStatuses, issue.Status) {
			continue
		}
		if filter.Priority != "" && issue.Priority != filter.Priority {
			continue
		}
		if filter.Category != nil && (issue.Category == nil || *issue.Category != *filter.Category) {
			continue
		}
		if filter.Reporter != nil && issue.Reporter != *filter.Reporter {
			continue
		}
		if filter.UnassignedOnly && issue.AssignedToManager != nil {
			continue
		}
		if !filter.UnassignedOnly && filter.Manager != nil && !issue.AssignedTo(*filter.Manager) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(issue.Title), search) &&
			!strings.Contains(strings.ToLower(issue.Description), search) {
			continue
		}
		issues = append(issues, cloneIssue(issue))
	}
	return issues
}

func (s *MemoryStore) deleteIssueLocked(id primitive.ObjectID) {
	delete(s.issues, id)
	for commentID, comment := range s.comments {
		if comment.Issue == id {
			delete(s.comments, commentID)
		}
	}
	for imageID, image := range s.images {
		if image.Issue == id {
			delete(s.images, imageID)
		}
	}
	for key := range s.upvotes {
		if key.issue == id {
			delete(s.upvotes, key)
		}
	}
}

func (s *MemoryStore) countUpvotesLocked(issueID primitive.ObjectID) int {
	count := 0
	for key := range s.upvotes {
		if key.issue == issueID {
			count++
		}
	}
	return count
}

func (s *MemoryStore) recountLocked(issueID primitive.ObjectID) int {
	issue, ok := s.issues[issueID]
	if !ok {
		return 0
	}
	issue.UpvotesCount = s.countUpvotesLocked(issueID)
	s.issues[issueID] = issue
	return issue.UpvotesCount
}

func containsStatus(statuses []models.IssueStatus, status models.IssueStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func cloneIssue(issue models.Issue) models.Issue {
	issue.Category = cloneID(issue.Category)
	issue.AssignedToManager = cloneID(issue.AssignedToManager)
	return issue
}
