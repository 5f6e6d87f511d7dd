package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"civicwatch-be/models"

	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const issueColumns = `id, title, description, reporter_id, category_id, latitude, longitude,
	image_url, video_url, status, priority, assigned_to_manager_id, upvotes_count,
	internal_notes, resolution_notes, resolution_image, municipal_area,
	reported_date, created_at, updated_at`

// PostgresStore keeps ObjectID hex strings as TEXT keys so both backends
// expose the same identifiers.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close(context.Context) error {
	return s.db.Close()
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, is_staff, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID.Hex(), user.Name, user.Email, string(user.Role), user.IsStaff, user.IsActive, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return mapPgError("insert user", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, is_staff, is_active, created_at, updated_at
		FROM users WHERE id=$1
	`, id.Hex())
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context, filter UserFilter) ([]models.User, error) {
	var (
		where []string
		args  []any
	)
	if filter.Role != "" {
		args = append(args, string(filter.Role))
		where = append(where, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.StaffOnly {
		where = append(where, "is_staff")
	}
	if filter.ActiveOnly {
		where = append(where, "is_active")
	}

	query := `SELECT id, name, email, role, is_staff, is_active, created_at, updated_at FROM users`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY email"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// DeleteUser relies on ON DELETE CASCADE / SET NULL for dependent rows and
// first releases the user's upvotes from other issues' counters.
func (s *PostgresStore) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE issues SET upvotes_count = GREATEST(upvotes_count - 1, 0)
			WHERE id IN (SELECT issue_id FROM upvotes WHERE user_id=$1)
		`, id.Hex()); err != nil {
			return fmt.Errorf("release upvotes: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id.Hex())
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return requireAffected(result)
	})
}

func (s *PostgresStore) CreateCategory(ctx context.Context, category *models.IssueCategory) error {
	if category.ID.IsZero() {
		category.ID = primitive.NewObjectID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO issue_categories (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, category.ID.Hex(), category.Name, category.Description, category.CreatedAt, category.UpdatedAt)
	if err != nil {
		return mapPgError("insert category", err)
	}
	return nil
}

func (s *PostgresStore) GetCategory(ctx context.Context, id primitive.ObjectID) (models.IssueCategory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, updated_at FROM issue_categories WHERE id=$1
	`, id.Hex())
	category, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.IssueCategory{}, ErrNotFound
	}
	if err != nil {
		return models.IssueCategory{}, fmt.Errorf("find category: %w", err)
	}
	return category, nil
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]models.IssueCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, created_at, updated_at FROM issue_categories ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]models.IssueCategory, 0)
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (s *PostgresStore) DeleteCategory(ctx context.Context, id primitive.ObjectID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM issue_categories WHERE id=$1`, id.Hex())
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return requireAffected(result)
}

func (s *PostgresStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO issues (`+issueColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`,
		issue.ID.Hex(), issue.Title, issue.Description, issue.Reporter.Hex(), nullableID(issue.Category),
		issue.Latitude, issue.Longitude, issue.ImageURL, issue.VideoURL,
		string(issue.Status), string(issue.Priority), nullableID(issue.AssignedToManager), issue.UpvotesCount,
		issue.InternalNotes, issue.ResolutionNotes, issue.ResolutionImage, issue.MunicipalArea,
		issue.ReportedDate, issue.CreatedAt, issue.UpdatedAt,
	)
	if err != nil {
		return mapPgError("insert issue", err)
	}
	return nil
}

func (s *PostgresStore) GetIssue(ctx context.Context, id primitive.ObjectID) (models.Issue, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id=$1`, id.Hex())
	issue, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Issue{}, ErrNotFound
	}
	if err != nil {
		return models.Issue{}, fmt.Errorf("find issue: %w", err)
	}
	return issue, nil
}

func (s *PostgresStore) ListIssues(ctx context.Context, filter IssueFilter) ([]models.Issue, error) {
	where, args := issueWhere(filter)
	direction := "DESC"
	if filter.Sort == SortOldest {
		direction = "ASC"
	}
	query := `SELECT ` + issueColumns + ` FROM issues` + where +
		fmt.Sprintf(" ORDER BY reported_date %s, id %s", direction, direction)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Skip > 0 {
		args = append(args, filter.Skip)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	issues := make([]models.Issue, 0)
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func (s *PostgresStore) CountIssues(ctx context.Context, filter IssueFilter) (int64, error) {
	where, args := issueWhere(filter)
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM issues`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count issues: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountIssuesByStatus(ctx context.Context) (map[models.IssueStatus]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM issues GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.IssueStatus]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[models.IssueStatus(status)] = n
	}
	return counts, rows.Err()
}

func (s *PostgresStore) UpdateIssueIfMatches(ctx context.Context, id primitive.ObjectID, expect Expectation, update IssueUpdate) (models.Issue, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE issues SET
			status=$4,
			assigned_to_manager_id=$5,
			priority=$6,
			internal_notes=COALESCE($7, internal_notes),
			resolution_notes=COALESCE($8, resolution_notes),
			resolution_image=COALESCE($9, resolution_image),
			updated_at=$10
		WHERE id=$1 AND status=$2 AND assigned_to_manager_id IS NOT DISTINCT FROM $3
		RETURNING `+issueColumns,
		id.Hex(), string(expect.Status), nullableID(expect.Manager),
		string(update.Status), nullableID(update.Manager), string(update.Priority),
		update.InternalNotes, update.ResolutionNotes, update.ResolutionImage,
		update.UpdatedAt,
	)
	issue, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.GetIssue(ctx, id); getErr != nil {
			return models.Issue{}, getErr
		}
		return models.Issue{}, ErrConflict
	}
	if err != nil {
		return models.Issue{}, mapPgError("update issue", err)
	}
	return issue, nil
}

func (s *PostgresStore) SetMunicipalArea(ctx context.Context, id primitive.ObjectID, area string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE issues SET municipal_area=$2, updated_at=$3 WHERE id=$1 AND municipal_area=''
	`, id.Hex(), area, at)
	if err != nil {
		return false, fmt.Errorf("set municipal area: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		if _, err := s.GetIssue(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *PostgresStore) DeleteIssue(ctx context.Context, id primitive.ObjectID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM issues WHERE id=$1`, id.Hex())
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	return requireAffected(result)
}

// ToggleUpvote inserts first; when the (issue_id, user_id) row already exists
// the same transaction removes it instead. Toggles on one issue are serialised
// by the issue row lock.
func (s *PostgresStore) ToggleUpvote(ctx context.Context, issueID, userID primitive.ObjectID, at time.Time) (UpvoteResult, error) {
	var result UpvoteResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var locked string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM issues WHERE id=$1 FOR UPDATE`, issueID.Hex()).Scan(&locked); err != nil {
			return err
		}

		inserted, err := tx.ExecContext(ctx, `
			INSERT INTO upvotes (id, issue_id, user_id, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (issue_id, user_id) DO NOTHING
		`, primitive.NewObjectID().Hex(), issueID.Hex(), userID.Hex(), at)
		if err != nil {
			return mapPgError("insert upvote", err)
		}
		affected, err := inserted.RowsAffected()
		if err != nil {
			return err
		}

		if affected == 1 {
			result.Upvoted = true
			return tx.QueryRowContext(ctx, `
				UPDATE issues SET upvotes_count = upvotes_count + 1, updated_at=$2
				WHERE id=$1 RETURNING upvotes_count
			`, issueID.Hex(), at).Scan(&result.Count)
		}

		deleted, err := tx.ExecContext(ctx, `DELETE FROM upvotes WHERE issue_id=$1 AND user_id=$2`, issueID.Hex(), userID.Hex())
		if err != nil {
			return fmt.Errorf("delete upvote: %w", err)
		}
		removed, err := deleted.RowsAffected()
		if err != nil {
			return err
		}
		if removed == 0 {
			return ErrConflict
		}
		result.Upvoted = false
		return tx.QueryRowContext(ctx, `
			UPDATE issues SET upvotes_count = GREATEST(upvotes_count - 1, 0), updated_at=$2
			WHERE id=$1 RETURNING upvotes_count
		`, issueID.Hex(), at).Scan(&result.Count)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return UpvoteResult{}, ErrNotFound
	}
	return result, err
}

func (s *PostgresStore) HasUpvoted(ctx context.Context, issueID, userID primitive.ObjectID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM upvotes WHERE issue_id=$1 AND user_id=$2)
	`, issueID.Hex(), userID.Hex()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("find upvote: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) CountUpvotes(ctx context.Context, issueID primitive.ObjectID) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM upvotes WHERE issue_id=$1`, issueID.Hex()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count upvotes: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ReconcileUpvotes(ctx context.Context, issueID primitive.ObjectID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		UPDATE issues SET upvotes_count = (SELECT COUNT(*) FROM upvotes WHERE issue_id=$1)
		WHERE id=$1 RETURNING upvotes_count
	`, issueID.Hex()).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("reconcile upvotes: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	if comment.ID.IsZero() {
		comment.ID = primitive.NewObjectID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, issue_id, author_id, text, created_at) VALUES ($1, $2, $3, $4, $5)
	`, comment.ID.Hex(), comment.Issue.Hex(), comment.Author.Hex(), comment.Text, comment.CreatedAt)
	if err != nil {
		return mapPgError("insert comment", err)
	}
	return nil
}

func (s *PostgresStore) ListComments(ctx context.Context, issueID primitive.ObjectID) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_id, author_id, text, created_at FROM comments
		WHERE issue_id=$1 ORDER BY created_at, id
	`, issueID.Hex())
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]models.Comment, 0)
	for rows.Next() {
		var (
			comment           models.Comment
			id, issue, author string
		)
		if err := rows.Scan(&id, &issue, &author, &comment.Text, &comment.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		if err := parseIDs(map[*primitive.ObjectID]string{&comment.ID: id, &comment.Issue: issue, &comment.Author: author}); err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

func (s *PostgresStore) AddImage(ctx context.Context, image *models.IssueImage) error {
	if image.ID.IsZero() {
		image.ID = primitive.NewObjectID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO issue_images (id, issue_id, url, caption, created_at) VALUES ($1, $2, $3, $4, $5)
	`, image.ID.Hex(), image.Issue.Hex(), image.URL, image.Caption, image.CreatedAt)
	if err != nil {
		return mapPgError("insert image", err)
	}
	return nil
}

func (s *PostgresStore) ListImages(ctx context.Context, issueID primitive.ObjectID) ([]models.IssueImage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_id, url, caption, created_at FROM issue_images
		WHERE issue_id=$1 ORDER BY created_at, id
	`, issueID.Hex())
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	images := make([]models.IssueImage, 0)
	for rows.Next() {
		var (
			image     models.IssueImage
			id, issue string
		)
		if err := rows.Scan(&id, &issue, &image.URL, &image.Caption, &image.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		if err := parseIDs(map[*primitive.ObjectID]string{&image.ID: id, &image.Issue: issue}); err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, rows.Err()
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var (
		user models.User
		id   string
		role string
	)
	if err := row.Scan(&id, &user.Name, &user.Email, &role, &user.IsStaff, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return models.User{}, err
	}
	user.Role = models.Role(role)
	if err := parseIDs(map[*primitive.ObjectID]string{&user.ID: id}); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func scanCategory(row rowScanner) (models.IssueCategory, error) {
	var (
		category models.IssueCategory
		id       string
	)
	if err := row.Scan(&id, &category.Name, &category.Description, &category.CreatedAt, &category.UpdatedAt); err != nil {
		return models.IssueCategory{}, err
	}
	if err := parseIDs(map[*primitive.ObjectID]string{&category.ID: id}); err != nil {
		return models.IssueCategory{}, err
	}
	return category, nil
}

func scanIssue(row rowScanner) (models.Issue, error) {
	var (
		issue             models.Issue
		id, reporter      string
		category, manager sql.NullString
		status, priority  string
	)
	err := row.Scan(
		&id, &issue.Title, &issue.Description, &reporter, &category, &issue.Latitude, &issue.Longitude,
		&issue.ImageURL, &issue.VideoURL, &status, &priority, &manager, &issue.UpvotesCount,
		&issue.InternalNotes, &issue.ResolutionNotes, &issue.ResolutionImage, &issue.MunicipalArea,
		&issue.ReportedDate, &issue.CreatedAt, &issue.UpdatedAt,
	)
	if err != nil {
		return models.Issue{}, err
	}
	issue.Status = models.IssueStatus(status)
	issue.Priority = models.Priority(priority)
	if err := parseIDs(map[*primitive.ObjectID]string{&issue.ID: id, &issue.Reporter: reporter}); err != nil {
		return models.Issue{}, err
	}
	if issue.Category, err = parseNullableID(category); err != nil {
		return models.Issue{}, err
	}
	if issue.AssignedToManager, err = parseNullableID(manager); err != nil {
		return models.Issue{}, err
	}
	return issue, nil
}

func issueWhere(filter IssueFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status = ANY("+next(statusStrings(filter.Statuses))+")")
	}
	if len(filter.ExcludeStatuses) > 0 {
		clauses = append(clauses, "NOT (status = ANY("+next(statusStrings(filter.ExcludeStatuses))+"))")
	}
	if filter.Priority != "" {
		clauses = append(clauses, "priority="+next(string(filter.Priority)))
	}
	if filter.Category != nil {
		clauses = append(clauses, "category_id="+next(filter.Category.Hex()))
	}
	if filter.Reporter != nil {
		clauses = append(clauses, "reporter_id="+next(filter.Reporter.Hex()))
	}
	if filter.UnassignedOnly {
		clauses = append(clauses, "assigned_to_manager_id IS NULL")
	} else if filter.Manager != nil {
		clauses = append(clauses, "assigned_to_manager_id="+next(filter.Manager.Hex()))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		p := next("%" + escapeLike(search) + "%")
		clauses = append(clauses, "(title ILIKE "+p+" OR description ILIKE "+p+")")
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func statusStrings(statuses []models.IssueStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullableID(id *primitive.ObjectID) any {
	if id == nil {
		return nil
	}
	return id.Hex()
}

func parseNullableID(v sql.NullString) (*primitive.ObjectID, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(v.String)
	if err != nil {
		return nil, fmt.Errorf("parse id %q: %w", v.String, err)
	}
	return &id, nil
}

func parseIDs(targets map[*primitive.ObjectID]string) error {
	for dst, raw := range targets {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return fmt.Errorf("parse id %q: %w", raw, err)
		}
		*dst = id
	}
	return nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func mapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.SQLState() {
		case pgUniqueViolation:
			return ErrDuplicate
		case pgForeignKeyViolation:
			return ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
