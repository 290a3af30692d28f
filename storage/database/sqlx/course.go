package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

const (
	courseColumns     = "id, owner_id, title, description, image_url, price, is_published, category_id, created_at, updated_at"
	chapterColumns    = "id, course_id, title, description, video_url, position, is_published, is_free, created_at, updated_at"
	attachmentColumns = "id, course_id, name, url, created_at, updated_at"
)

type (
	courseRow struct {
		ID          string       `db:"id"`
		OwnerID     string       `db:"owner_id"`
		Title       string       `db:"title"`
		Description null.String  `db:"description"`
		ImageURL    null.String  `db:"image_url"`
		Price       null.Float64 `db:"price"`
		IsPublished bool         `db:"is_published"`
		CategoryID  null.String  `db:"category_id"`
		CreatedAt   time.Time    `db:"created_at"`
		UpdatedAt   time.Time    `db:"updated_at"`
	}

	chapterRow struct {
		ID          string      `db:"id"`
		CourseID    string      `db:"course_id"`
		Title       string      `db:"title"`
		Description null.String `db:"description"`
		VideoURL    null.String `db:"video_url"`
		Position    int         `db:"position"`
		IsPublished bool        `db:"is_published"`
		IsFree      bool        `db:"is_free"`
		CreatedAt   time.Time   `db:"created_at"`
		UpdatedAt   time.Time   `db:"updated_at"`
	}

	attachmentRow struct {
		ID        string    `db:"id"`
		CourseID  string    `db:"course_id"`
		Name      string    `db:"name"`
		URL       string    `db:"url"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
)

func (r courseRow) course() course.Course {
	return course.Course{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Title:       r.Title,
		Description: r.Description.String,
		ImageURL:    r.ImageURL.String,
		Price:       r.Price.Ptr(),
		IsPublished: r.IsPublished,
		CategoryID:  r.CategoryID.String,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (r chapterRow) chapter() course.Chapter {
	return course.Chapter{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Description: r.Description.String,
		VideoURL:    r.VideoURL.String,
		Position:    r.Position,
		IsPublished: r.IsPublished,
		IsFree:      r.IsFree,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (r attachmentRow) attachment() course.Attachment {
	return course.Attachment{
		ID:        r.ID,
		CourseID:  r.CourseID,
		Name:      r.Name,
		URL:       r.URL,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	query, args, err := psql.Insert("course").
		Columns("id", "owner_id", "title", "created_at", "updated_at").
		Values(uuid.New().String(), crs.OwnerID, crs.Title, crs.CreatedAt.UTC(), crs.UpdatedAt.UTC()).
		Suffix("RETURNING " + courseColumns).
		ToSql()
	if err != nil {
		return course.Course{}, errors.Wrap(err, "building query")
	}

	var row courseRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return row.course(), nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+courseColumns+" FROM course WHERE id = $1", id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "finding course by ID")
	}
	return row.course(), nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, ownerID string, ordering []core.DBOrdering) ([]course.Course, error) {
	qb := psql.Select(courseColumns).From("course").Where(sq.Eq{"owner_id": ownerID})
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		qb = qb.OrderBy(strings.Join(orderList, ", "))
	} else {
		qb = qb.OrderBy("created_at DESC")
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var rows []courseRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.course())
	}
	return courses, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, id string, uc course.UpdateCourse, updatedAt time.Time) (course.Course, error) {
	set := map[string]interface{}{"updated_at": updatedAt.UTC()}
	if uc.Title != nil {
		set["title"] = *uc.Title
	}
	if uc.Description != nil {
		set["description"] = null.StringFrom(*uc.Description)
	}
	if uc.ImageURL != nil {
		set["image_url"] = null.StringFrom(*uc.ImageURL)
	}
	if uc.Price != nil {
		set["price"] = null.Float64From(*uc.Price)
	}
	if uc.CategoryID != nil {
		set["category_id"] = null.NewString(*uc.CategoryID, *uc.CategoryID != "")
	}
	if uc.IsPublished != nil {
		set["is_published"] = *uc.IsPublished
	}

	query, args, err := psql.Update("course").
		SetMap(set).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + courseColumns).
		ToSql()
	if err != nil {
		return course.Course{}, errors.Wrap(err, "building query")
	}

	var row courseRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if pgErrCode(err) == pgForeignKeyViolation {
			return course.Course{}, course.ErrUnknownCategory
		}
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "updating course")
	}
	return row.course(), nil
}

// lockCourse locks the course row until the end of the transaction,
// serializing every position change within the course.
func lockCourse(ctx context.Context, tx *sqlx.Tx, courseID string) error {
	var id string
	if err := tx.GetContext(ctx, &id, "SELECT id FROM course WHERE id = $1 FOR UPDATE", courseID); err != nil {
		return trapNoRowsErr(err, course.ErrNotFound, "locking course")
	}
	return nil
}

func (repo courseRepository) CreateChapter(ctx context.Context, chap course.Chapter) (course.Chapter, error) {
	var row chapterRow
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := lockCourse(ctx, tx, chap.CourseID); err != nil {
			return err
		}

		var next int
		if err := tx.GetContext(ctx, &next, "SELECT COALESCE(MAX(position) + 1, 0) FROM chapter WHERE course_id = $1", chap.CourseID); err != nil {
			return errors.Wrap(err, "finding next position")
		}

		query, args, err := psql.Insert("chapter").
			Columns("id", "course_id", "title", "position", "created_at", "updated_at").
			Values(uuid.New().String(), chap.CourseID, chap.Title, next, chap.CreatedAt.UTC(), chap.UpdatedAt.UTC()).
			Suffix("RETURNING " + chapterColumns).
			ToSql()
		if err != nil {
			return errors.Wrap(err, "building query")
		}
		return errors.Wrap(tx.GetContext(ctx, &row, query, args...), "inserting chapter")
	})
	if err != nil {
		return course.Chapter{}, err
	}
	return row.chapter(), nil
}

func (repo courseRepository) QueryChapters(ctx context.Context, courseID string) ([]course.Chapter, error) {
	var rows []chapterRow
	query := "SELECT " + chapterColumns + " FROM chapter WHERE course_id = $1 ORDER BY position ASC, created_at ASC, id ASC"
	if err := repo.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, errors.Wrap(err, "querying chapters")
	}
	chapters := make([]course.Chapter, 0, len(rows))
	for _, r := range rows {
		chapters = append(chapters, r.chapter())
	}
	return chapters, nil
}

func (repo courseRepository) UpdateChapter(
	ctx context.Context,
	courseID, chapterID string,
	uc course.UpdateChapter,
	updatedAt time.Time,
) (course.Chapter, error) {
	set := map[string]interface{}{"updated_at": updatedAt.UTC()}
	if uc.Title != nil {
		set["title"] = *uc.Title
	}
	if uc.Description != nil {
		set["description"] = null.StringFrom(*uc.Description)
	}
	if uc.VideoURL != nil {
		set["video_url"] = null.StringFrom(*uc.VideoURL)
	}
	if uc.IsPublished != nil {
		set["is_published"] = *uc.IsPublished
	}
	if uc.IsFree != nil {
		set["is_free"] = *uc.IsFree
	}

	query, args, err := psql.Update("chapter").
		SetMap(set).
		Where(sq.Eq{"id": chapterID, "course_id": courseID}).
		Suffix("RETURNING " + chapterColumns).
		ToSql()
	if err != nil {
		return course.Chapter{}, errors.Wrap(err, "building query")
	}

	var row chapterRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return course.Chapter{}, trapNoRowsErr(err, course.ErrNotFound, "updating chapter")
	}
	return row.chapter(), nil
}

func (repo courseRepository) ReorderChapters(ctx context.Context, courseID string, items []course.ReorderItem, updatedAt time.Time) error {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}

	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := lockCourse(ctx, tx, courseID); err != nil {
			return err
		}

		// every chapter must belong to the course before anything is written
		var owned int
		query := "SELECT COUNT(*) FROM chapter WHERE course_id = $1 AND id = ANY($2)"
		if err := tx.GetContext(ctx, &owned, query, courseID, pq.Array(ids)); err != nil {
			return errors.Wrap(err, "counting chapters")
		}
		if owned != len(ids) {
			return course.ErrNotFound
		}

		stmt, err := tx.PreparexContext(ctx, "UPDATE chapter SET position = $1, updated_at = $2 WHERE id = $3 AND course_id = $4")
		if err != nil {
			return errors.Wrap(err, "preparing position update")
		}
		defer func() { _ = stmt.Close() }()

		for _, item := range items {
			res, err := stmt.ExecContext(ctx, item.Position, updatedAt.UTC(), item.ID, courseID)
			if err != nil {
				return errors.Wrap(err, "updating chapter position")
			}
			if n, err := res.RowsAffected(); err != nil {
				return errors.Wrap(err, "updating chapter position")
			} else if n != 1 {
				return course.ErrNotFound
			}
		}

		var conflicts int
		query = "SELECT COUNT(*) FROM (SELECT position FROM chapter WHERE course_id = $1 GROUP BY position HAVING COUNT(*) > 1) AS dup"
		if err = tx.GetContext(ctx, &conflicts, query, courseID); err != nil {
			return errors.Wrap(err, "checking positions")
		}
		if conflicts > 0 {
			return course.ErrPositionConflict
		}
		return nil
	})
}

func (repo courseRepository) CreateAttachment(ctx context.Context, att course.Attachment) (course.Attachment, error) {
	query, args, err := psql.Insert("attachment").
		Columns("id", "course_id", "name", "url", "created_at", "updated_at").
		Values(uuid.New().String(), att.CourseID, att.Name, att.URL, att.CreatedAt.UTC(), att.UpdatedAt.UTC()).
		Suffix("RETURNING " + attachmentColumns).
		ToSql()
	if err != nil {
		return course.Attachment{}, errors.Wrap(err, "building query")
	}

	var row attachmentRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if pgErrCode(err) == pgForeignKeyViolation {
			return course.Attachment{}, course.ErrNotFound
		}
		return course.Attachment{}, errors.Wrap(err, "inserting attachment")
	}
	return row.attachment(), nil
}

func (repo courseRepository) QueryAttachments(ctx context.Context, courseID string) ([]course.Attachment, error) {
	var rows []attachmentRow
	query := "SELECT " + attachmentColumns + " FROM attachment WHERE course_id = $1 ORDER BY created_at ASC, id ASC"
	if err := repo.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, errors.Wrap(err, "querying attachments")
	}
	attachments := make([]course.Attachment, 0, len(rows))
	for _, r := range rows {
		attachments = append(attachments, r.attachment())
	}
	return attachments, nil
}

func (repo courseRepository) DeleteAttachment(ctx context.Context, courseID, attachmentID string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM attachment WHERE id = $1 AND course_id = $2", attachmentID, courseID)
	if err != nil {
		return errors.Wrap(err, "deleting attachment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting attachment")
	}
	if n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo courseRepository) QueryCategories(ctx context.Context) ([]course.Category, error) {
	categories := make([]course.Category, 0)
	if err := repo.db.SelectContext(ctx, &categories, "SELECT id, name FROM category ORDER BY name ASC"); err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	return categories, nil
}

func (repo courseRepository) CreateCategories(ctx context.Context, names ...string) (int, error) {
	var created int
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for _, name := range names {
			res, err := tx.ExecContext(ctx, "INSERT INTO category (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING", uuid.New().String(), name)
			if err != nil {
				return errors.Wrap(err, "inserting category")
			}
			n, err := res.RowsAffected()
			if err != nil {
				return errors.Wrap(err, "inserting category")
			}
			created += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
