package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"civicwatch-be/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	issuesCollection     = "issues"
	categoriesCollection = "categories"
	upvotesCollection    = "upvotes"
	commentsCollection   = "comments"
	imagesCollection     = "issue_images"
	usersCollection      = "users"
)

// MongoStore is the default backend. Multi-document writes run in
// transactions, so the server must be a replica set member.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{client: client, db: client.Database(database)}
}

func (s *MongoStore) collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// EnsureIndexes creates the unique and lookup indexes the store relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if err := models.EnsureUpvoteIndex(ctx, s.collection(upvotesCollection)); err != nil {
		return fmt.Errorf("upvote index: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	unique := []struct {
		collection string
		field      string
	}{
		{categoriesCollection, "name"},
		{usersCollection, "email"},
	}
	for _, idx := range unique {
		_, err := s.collection(idx.collection).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: idx.field, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("%s.%s index: %w", idx.collection, idx.field, err)
		}
	}

	_, err := s.collection(issuesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "assignedToManager", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "reportedDate", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("issue indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if _, err := s.collection(usersCollection).InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *MongoStore) GetUser(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var user models.User
	err := s.collection(usersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *MongoStore) ListUsers(ctx context.Context, filter UserFilter) ([]models.User, error) {
	query := bson.M{}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	if filter.StaffOnly {
		query["isStaff"] = true
	}
	if filter.ActiveOnly {
		query["isActive"] = true
	}

	cursor, err := s.collection(usersCollection).Find(ctx, query, options.Find().SetSort(bson.D{{Key: "email", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cursor.Close(ctx)

	users := make([]models.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

// DeleteUser removes the user with their reports, comments and upvotes.
// Upvote counters of other issues are decremented and assignments cleared.
func (s *MongoStore) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := s.collection(usersCollection).DeleteOne(sc, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if res.DeletedCount == 0 {
			return ErrNotFound
		}

		reported, err := s.distinctIDs(sc, issuesCollection, "_id", bson.M{"reporter": id})
		if err != nil {
			return err
		}
		if err := s.deleteIssuesWithChildren(sc, reported); err != nil {
			return err
		}

		if _, err := s.collection(commentsCollection).DeleteMany(sc, bson.M{"author": id}); err != nil {
			return fmt.Errorf("delete user comments: %w", err)
		}

		upvoted, err := s.distinctIDs(sc, upvotesCollection, "issue", bson.M{"user": id})
		if err != nil {
			return err
		}
		if _, err := s.collection(upvotesCollection).DeleteMany(sc, bson.M{"user": id}); err != nil {
			return fmt.Errorf("delete user upvotes: %w", err)
		}
		if len(upvoted) > 0 {
			_, err := s.collection(issuesCollection).UpdateMany(sc,
				bson.M{"_id": bson.M{"$in": upvoted}},
				upvoteDeltaPipeline(-1, time.Now().UTC()),
			)
			if err != nil {
				return fmt.Errorf("decrement upvotes: %w", err)
			}
		}

		_, err = s.collection(issuesCollection).UpdateMany(sc,
			bson.M{"assignedToManager": id},
			bson.M{"$set": bson.M{"assignedToManager": nil}},
		)
		if err != nil {
			return fmt.Errorf("clear assignments: %w", err)
		}
		return nil
	})
}

func (s *MongoStore) CreateCategory(ctx context.Context, category *models.IssueCategory) error {
	if category.ID.IsZero() {
		category.ID = primitive.NewObjectID()
	}
	if _, err := s.collection(categoriesCollection).InsertOne(ctx, category); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (s *MongoStore) GetCategory(ctx context.Context, id primitive.ObjectID) (models.IssueCategory, error) {
	var category models.IssueCategory
	err := s.collection(categoriesCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&category)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.IssueCategory{}, ErrNotFound
	}
	if err != nil {
		return models.IssueCategory{}, fmt.Errorf("find category: %w", err)
	}
	return category, nil
}

func (s *MongoStore) ListCategories(ctx context.Context) ([]models.IssueCategory, error) {
	cursor, err := s.collection(categoriesCollection).Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find categories: %w", err)
	}
	defer cursor.Close(ctx)

	categories := make([]models.IssueCategory, 0)
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return categories, nil
}

func (s *MongoStore) DeleteCategory(ctx context.Context, id primitive.ObjectID) error {
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := s.collection(categoriesCollection).DeleteOne(sc, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		if res.DeletedCount == 0 {
			return ErrNotFound
		}
		_, err = s.collection(issuesCollection).UpdateMany(sc,
			bson.M{"category": id},
			bson.M{"$set": bson.M{"category": nil}},
		)
		if err != nil {
			return fmt.Errorf("detach category: %w", err)
		}
		return nil
	})
}

func (s *MongoStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if err := s.exists(ctx, usersCollection, issue.Reporter); err != nil {
		return err
	}
	if issue.Category != nil {
		if err := s.exists(ctx, categoriesCollection, *issue.Category); err != nil {
			return err
		}
	}
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if _, err := s.collection(issuesCollection).InsertOne(ctx, issue); err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (s *MongoStore) GetIssue(ctx context.Context, id primitive.ObjectID) (models.Issue, error) {
	var issue models.Issue
	err := s.collection(issuesCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Issue{}, ErrNotFound
	}
	if err != nil {
		return models.Issue{}, fmt.Errorf("find issue: %w", err)
	}
	return issue, nil
}

func (s *MongoStore) ListIssues(ctx context.Context, filter IssueFilter) ([]models.Issue, error) {
	direction := -1
	if filter.Sort == SortOldest {
		direction = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: "reportedDate", Value: direction}, {Key: "_id", Value: direction}})
	if filter.Skip > 0 {
		opts.SetSkip(int64(filter.Skip))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.collection(issuesCollection).Find(ctx, issueQuery(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}
	defer cursor.Close(ctx)

	issues := make([]models.Issue, 0)
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}
	return issues, nil
}

func (s *MongoStore) CountIssues(ctx context.Context, filter IssueFilter) (int64, error) {
	n, err := s.collection(issuesCollection).CountDocuments(ctx, issueQuery(filter))
	if err != nil {
		return 0, fmt.Errorf("count issues: %w", err)
	}
	return n, nil
}

func (s *MongoStore) CountIssuesByStatus(ctx context.Context) (map[models.IssueStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := s.collection(issuesCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate statuses: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status models.IssueStatus `bson:"_id"`
		Count  int64              `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode status counts: %w", err)
	}

	counts := make(map[models.IssueStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// UpdateIssueIfMatches applies update only while the stored status and manager
// still equal expect. A mismatch on an existing issue yields ErrConflict.
func (s *MongoStore) UpdateIssueIfMatches(ctx context.Context, id primitive.ObjectID, expect Expectation, update IssueUpdate) (models.Issue, error) {
	if update.Manager != nil {
		if err := s.exists(ctx, usersCollection, *update.Manager); err != nil {
			return models.Issue{}, err
		}
	}

	filter := bson.M{
		"_id":               id,
		"status":            expect.Status,
		"assignedToManager": managerValue(expect.Manager),
	}
	set := bson.M{
		"status":            update.Status,
		"assignedToManager": managerValue(update.Manager),
		"priority":          update.Priority,
		"updatedAt":         update.UpdatedAt,
	}
	if update.InternalNotes != nil {
		set["internalNotes"] = *update.InternalNotes
	}
	if update.ResolutionNotes != nil {
		set["resolutionNotes"] = *update.ResolutionNotes
	}
	if update.ResolutionImage != nil {
		set["resolutionImage"] = *update.ResolutionImage
	}

	var issue models.Issue
	err := s.collection(issuesCollection).FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&issue)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if existsErr := s.exists(ctx, issuesCollection, id); existsErr != nil {
			return models.Issue{}, existsErr
		}
		return models.Issue{}, ErrConflict
	}
	if err != nil {
		return models.Issue{}, fmt.Errorf("update issue: %w", err)
	}
	return issue, nil
}

func (s *MongoStore) SetMunicipalArea(ctx context.Context, id primitive.ObjectID, area string, at time.Time) (bool, error) {
	res, err := s.collection(issuesCollection).UpdateOne(ctx,
		bson.M{"_id": id, "municipalArea": bson.M{"$in": bson.A{"", nil}}},
		bson.M{"$set": bson.M{"municipalArea": area, "updatedAt": at}},
	)
	if err != nil {
		return false, fmt.Errorf("set municipal area: %w", err)
	}
	if res.MatchedCount == 0 {
		if err := s.exists(ctx, issuesCollection, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *MongoStore) DeleteIssue(ctx context.Context, id primitive.ObjectID) error {
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if err := s.exists(sc, issuesCollection, id); err != nil {
			return err
		}
		return s.deleteIssuesWithChildren(sc, []primitive.ObjectID{id})
	})
}

// ToggleUpvote inserts first and falls back to removal when the unique
// (issue, user) index reports a duplicate. Each branch is its own transaction.
func (s *MongoStore) ToggleUpvote(ctx context.Context, issueID, userID primitive.ObjectID, at time.Time) (UpvoteResult, error) {
	if err := s.exists(ctx, usersCollection, userID); err != nil {
		return UpvoteResult{}, err
	}

	for attempt := 0; attempt < 3; attempt++ {
		result, err := s.addUpvote(ctx, issueID, userID, at)
		if err == nil {
			return result, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return UpvoteResult{}, err
		}

		result, err = s.removeUpvote(ctx, issueID, userID, at)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, errUpvoteGone) {
			return UpvoteResult{}, err
		}
	}
	return UpvoteResult{}, ErrConflict
}

var errUpvoteGone = errors.New("upvote removed concurrently")

func (s *MongoStore) addUpvote(ctx context.Context, issueID, userID primitive.ObjectID, at time.Time) (UpvoteResult, error) {
	var result UpvoteResult
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		var issue models.Issue
		err := s.collection(issuesCollection).FindOneAndUpdate(sc,
			bson.M{"_id": issueID},
			bson.M{"$inc": bson.M{"upvotesCount": 1}, "$set": bson.M{"updatedAt": at}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&issue)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("increment upvotes: %w", err)
		}

		upvote := models.Upvote{ID: primitive.NewObjectID(), Issue: issueID, User: userID, CreatedAt: at}
		if _, err := s.collection(upvotesCollection).InsertOne(sc, upvote); err != nil {
			return err
		}
		result = UpvoteResult{Upvoted: true, Count: issue.UpvotesCount}
		return nil
	})
	return result, err
}

func (s *MongoStore) removeUpvote(ctx context.Context, issueID, userID primitive.ObjectID, at time.Time) (UpvoteResult, error) {
	var result UpvoteResult
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := s.collection(upvotesCollection).DeleteOne(sc, bson.M{"issue": issueID, "user": userID})
		if err != nil {
			return fmt.Errorf("delete upvote: %w", err)
		}
		if res.DeletedCount == 0 {
			return errUpvoteGone
		}

		var issue models.Issue
		err = s.collection(issuesCollection).FindOneAndUpdate(sc,
			bson.M{"_id": issueID},
			upvoteDeltaPipeline(-1, at),
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&issue)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("decrement upvotes: %w", err)
		}
		result = UpvoteResult{Upvoted: false, Count: issue.UpvotesCount}
		return nil
	})
	return result, err
}

func (s *MongoStore) HasUpvoted(ctx context.Context, issueID, userID primitive.ObjectID) (bool, error) {
	n, err := s.collection(upvotesCollection).CountDocuments(ctx, bson.M{"issue": issueID, "user": userID})
	if err != nil {
		return false, fmt.Errorf("find upvote: %w", err)
	}
	return n > 0, nil
}

func (s *MongoStore) CountUpvotes(ctx context.Context, issueID primitive.ObjectID) (int, error) {
	n, err := s.collection(upvotesCollection).CountDocuments(ctx, bson.M{"issue": issueID})
	if err != nil {
		return 0, fmt.Errorf("count upvotes: %w", err)
	}
	return int(n), nil
}

func (s *MongoStore) ReconcileUpvotes(ctx context.Context, issueID primitive.ObjectID) (int, error) {
	var count int
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		n, err := s.collection(upvotesCollection).CountDocuments(sc, bson.M{"issue": issueID})
		if err != nil {
			return fmt.Errorf("count upvotes: %w", err)
		}
		res, err := s.collection(issuesCollection).UpdateOne(sc,
			bson.M{"_id": issueID},
			bson.M{"$set": bson.M{"upvotesCount": n}},
		)
		if err != nil {
			return fmt.Errorf("store upvote count: %w", err)
		}
		if res.MatchedCount == 0 {
			return ErrNotFound
		}
		count = int(n)
		return nil
	})
	return count, err
}

func (s *MongoStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	if err := s.exists(ctx, issuesCollection, comment.Issue); err != nil {
		return err
	}
	if err := s.exists(ctx, usersCollection, comment.Author); err != nil {
		return err
	}
	if comment.ID.IsZero() {
		comment.ID = primitive.NewObjectID()
	}
	if _, err := s.collection(commentsCollection).InsertOne(ctx, comment); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *MongoStore) ListComments(ctx context.Context, issueID primitive.ObjectID) ([]models.Comment, error) {
	cursor, err := s.collection(commentsCollection).Find(ctx, bson.M{"issue": issueID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find comments: %w", err)
	}
	defer cursor.Close(ctx)

	comments := make([]models.Comment, 0)
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	return comments, nil
}

func (s *MongoStore) AddImage(ctx context.Context, image *models.IssueImage) error {
	if err := s.exists(ctx, issuesCollection, image.Issue); err != nil {
		return err
	}
	if image.ID.IsZero() {
		image.ID = primitive.NewObjectID()
	}
	if _, err := s.collection(imagesCollection).InsertOne(ctx, image); err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

func (s *MongoStore) ListImages(ctx context.Context, issueID primitive.ObjectID) ([]models.IssueImage, error) {
	cursor, err := s.collection(imagesCollection).Find(ctx, bson.M{"issue": issueID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find images: %w", err)
	}
	defer cursor.Close(ctx)

	images := make([]models.IssueImage, 0)
	if err := cursor.All(ctx, &images); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	return images, nil
}

func (s *MongoStore) exists(ctx context.Context, collection string, id primitive.ObjectID) error {
	n, err := s.collection(collection).CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("lookup %s: %w", collection, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) distinctIDs(ctx context.Context, collection, field string, filter bson.M) ([]primitive.ObjectID, error) {
	values, err := s.collection(collection).Distinct(ctx, field, filter)
	if err != nil {
		return nil, fmt.Errorf("distinct %s.%s: %w", collection, field, err)
	}
	ids := make([]primitive.ObjectID, 0, len(values))
	for _, v := range values {
		if id, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MongoStore) deleteIssuesWithChildren(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	in := bson.M{"$in": ids}
	if _, err := s.collection(commentsCollection).DeleteMany(ctx, bson.M{"issue": in}); err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}
	if _, err := s.collection(imagesCollection).DeleteMany(ctx, bson.M{"issue": in}); err != nil {
		return fmt.Errorf("delete images: %w", err)
	}
	if _, err := s.collection(upvotesCollection).DeleteMany(ctx, bson.M{"issue": in}); err != nil {
		return fmt.Errorf("delete upvotes: %w", err)
	}
	if _, err := s.collection(issuesCollection).DeleteMany(ctx, bson.M{"_id": in}); err != nil {
		return fmt.Errorf("delete issues: %w", err)
	}
	return nil
}

// upvoteDeltaPipeline adjusts upvotesCount by delta without going below zero.
func upvoteDeltaPipeline(delta int, at time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "upvotesCount", Value: bson.D{{Key: "$max", Value: bson.A{
				0,
				bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$upvotesCount", 0}}}, delta}}},
			}}}},
			{Key: "updatedAt", Value: at},
		}}},
	}
}

func issueQuery(filter IssueFilter) bson.M {
	query := bson.M{}
	status := bson.M{}
	if len(filter.Statuses) > 0 {
		status["$in"] = filter.Statuses
	}
	if len(filter.ExcludeStatuses) > 0 {
		status["$nin"] = filter.ExcludeStatuses
	}
	if len(status) > 0 {
		query["status"] = status
	}
	if filter.Priority != "" {
		query["priority"] = filter.Priority
	}
	if filter.Category != nil {
		query["category"] = *filter.Category
	}
	if filter.Reporter != nil {
		query["reporter"] = *filter.Reporter
	}
	if filter.UnassignedOnly {
		query["assignedToManager"] = nil
	} else if filter.Manager != nil {
		query["assignedToManager"] = *filter.Manager
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
		}
	}
	return query
}
