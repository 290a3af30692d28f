package course

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrUnauthenticated  = errors.New("user not authenticated")
	ErrUnauthorized     = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrNothingToUpdate  = errors.New("no fields to update")
	ErrPositionConflict = errors.New("two chapters would share the same position")
	ErrDeleteInProgress = errors.New("deletion already in progress")
	ErrUnknownCategory  = errors.New("unknown category")

	NowFunc = time.Now // mockable

	// CourseOrderingFields are the fields courses may be ordered by.
	CourseOrderingFields = []string{"title", "price", "created_at", "updated_at"}

	DefaultCategories = []string{"Computer Science", "Music", "Fitness", "Photography", "Philosophy", "Finance"}
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		QueryCourses(ctx context.Context, ownerID string, ordering []core.DBOrdering) ([]Course, error)
		// UpdateCourse only writes the non-nil fields of `uc`.
		// It fails with ErrUnknownCategory when `uc.CategoryID` does not exist.
		UpdateCourse(ctx context.Context, id string, uc UpdateCourse, updatedAt time.Time) (Course, error)

		// CreateChapter appends the chapter after the last one of its course.
		CreateChapter(ctx context.Context, chap Chapter) (Chapter, error)
		// QueryChapters returns the chapters of a course sorted by position.
		QueryChapters(ctx context.Context, courseID string) ([]Chapter, error)
		// UpdateChapter only writes the non-nil fields of `uc`.
		// It fails with ErrNotFound when the chapter does not belong to the course.
		UpdateChapter(ctx context.Context, courseID, chapterID string, uc UpdateChapter, updatedAt time.Time) (Chapter, error)
		// ReorderChapters applies all positions in a single transaction or none of them.
		// It fails with ErrNotFound when any id does not belong to the course and
		// with ErrPositionConflict when the resulting order is not strict.
		ReorderChapters(ctx context.Context, courseID string, items []ReorderItem, updatedAt time.Time) error

		CreateAttachment(ctx context.Context, att Attachment) (Attachment, error)
		QueryAttachments(ctx context.Context, courseID string) ([]Attachment, error)
		// DeleteAttachment fails with ErrNotFound when nothing was deleted.
		DeleteAttachment(ctx context.Context, courseID, attachmentID string) error

		QueryCategories(ctx context.Context) ([]Category, error)
		// CreateCategories creates the missing categories and returns how many were created.
		CreateCategories(ctx context.Context, names ...string) (int, error)
	}

	Service struct {
		repo      Repository
		validate  *validator.Validate
		deletions *DeletionTracker
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{
		repo:      repo,
		validate:  validate,
		deletions: NewDeletionTracker(),
	}
}

func isValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Authorize returns the Course identified by `courseID` when it is owned by `callerID`.
// Every mutation of a course or of its children goes through here first.
func (svc *Service) Authorize(ctx context.Context, callerID, courseID string) (Course, error) {
	if callerID == "" {
		return Course{}, ErrUnauthenticated
	}
	if !isValidID(courseID) {
		return Course{}, ErrNotFound
	}
	crs, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Course{}, ErrNotFound
		}
		return Course{}, errors.Wrap(err, "getting course")
	}
	if crs.OwnerID != callerID {
		return Course{}, ErrUnauthorized
	}
	return crs, nil
}

func (svc *Service) CreateCourse(ctx context.Context, callerID string, nc NewCourse) (Course, error) {
	if callerID == "" {
		return Course{}, ErrUnauthenticated
	}
	if err := nc.Validate(svc.validate); err != nil {
		return Course{}, err
	}

	now := NowFunc().UTC()
	crs, err := svc.repo.CreateCourse(ctx, Course{
		OwnerID:   callerID,
		Title:     nc.Title,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Course{}, errors.Wrap(err, "creating course")
	}
	return crs, nil
}

// ListCourses returns the courses owned by the caller.
func (svc *Service) ListCourses(ctx context.Context, callerID string, ordering []core.DBOrdering) ([]Course, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	if err := core.CheckOrderings(ordering, CourseOrderingFields...); err != nil {
		return nil, err
	}
	courses, err := svc.repo.QueryCourses(ctx, callerID, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return courses, nil
}

// GetCourse returns the course along with its chapters and attachments.
func (svc *Service) GetCourse(ctx context.Context, callerID, courseID string) (Course, error) {
	crs, err := svc.Authorize(ctx, callerID, courseID)
	if err != nil {
		return Course{}, err
	}
	if crs.Chapters, err = svc.repo.QueryChapters(ctx, crs.ID); err != nil {
		return Course{}, errors.Wrap(err, "querying chapters")
	}
	if crs.Attachments, err = svc.repo.QueryAttachments(ctx, crs.ID); err != nil {
		return Course{}, errors.Wrap(err, "querying attachments")
	}
	return crs, nil
}

func (svc *Service) UpdateCourse(ctx context.Context, callerID, courseID string, uc UpdateCourse) (Course, error) {
	if _, err := svc.Authorize(ctx, callerID, courseID); err != nil {
		return Course{}, err
	}
	if uc.IsEmpty() {
		return Course{}, core.NewValidationError(ErrNothingToUpdate)
	}
	if err := uc.Validate(svc.validate); err != nil {
		return Course{}, err
	}

	crs, err := svc.repo.UpdateCourse(ctx, courseID, uc, NowFunc().UTC())
	if err != nil {
		switch errors.Cause(err) {
		case ErrNotFound:
			return Course{}, ErrNotFound
		case ErrUnknownCategory:
			return Course{}, core.NewValidationError(ErrUnknownCategory, core.FieldError{Field: "category_id", Error: ErrUnknownCategory.Error()})
		}
		return Course{}, errors.Wrap(err, "updating course")
	}
	return crs, nil
}

func (svc *Service) CreateChapter(ctx context.Context, callerID, courseID string, nc NewChapter) (Chapter, error) {
	if _, err := svc.Authorize(ctx, callerID, courseID); err != nil {
		return Chapter{}, err
	}
	if err := nc.Validate(svc.validate); err != nil {
		return Chapter{}, err
	}

	now := NowFunc().UTC()
	chap, err := svc.repo.CreateChapter(ctx, Chapter{
		CourseID:  courseID,
		Title:     nc.Title,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Chapter{}, errors.Wrap(err, "creating chapter")
	}
	return chap, nil
}

func (svc *Service) ListChapters(ctx context.Context, callerID, courseID string) ([]Chapter, error) {
	if _, err := svc.Authorize(ctx, callerID, courseID); err != nil {
		return nil, err
	}
	chapters, err := svc.repo.QueryChapters(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying chapters")
	}
	return chapters, nil
}

// UpdateChapter persists only the fields set in `uc`.
func (svc *Service) UpdateChapter(ctx context.Context, callerID, courseID, chapterID string, uc UpdateChapter) (Chapter, error) {
	if _, err := svc.Authorize(ctx, callerID, courseID); err != nil {
		return Chapter{}, err
	}
	if !isValidID(chapterID) {
		return Chapter{}, ErrNotFound
	}
	if uc.IsEmpty() {
		return Chapter{}, core.NewValidationError(ErrNothingToUpdate)
	}
	if err := uc.Validate(svc.validate); err != nil {
		return Chapter{}, err
	}

	chap, err := svc.repo.UpdateChapter(ctx, courseID, chapterID, uc, NowFunc().UTC())
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Chapter{}, ErrNotFound
		}
		return Chapter{}, errors.Wrap(err, "updating chapter")
	}
	return chap, nil
}

// ReorderChapters sets the position of every listed chapter at once.
// Duplicated ids or positions are rejected before anything is written.
func (svc *Service) ReorderChapters(ctx context.Context, callerID, courseID string, items []ReorderItem) error {
	if _, err := svc.Authorize(ctx, callerID, courseID); err != nil {
		return err
	}

	req := ReorderRequest{List: items}
	if err := req.Validate(svc.validate); err != nil {
		return err
	}

	ids := make(map[string]struct{}, len(req.List))
	positions := make(map[int]string, len(req.List))
	for _, item := range req.List {
		if _, ok := ids[item.ID]; ok {
			return core.NewValidationError(nil, core.FieldError{
				Field: "list", Error: fmt.Sprintf("chapter %s is listed more than once", item.ID),
			})
		}
		ids[item.ID] = struct{}{}

		if other, ok := positions[item.Position]; ok {
			return core.NewValidationError(nil, core.FieldError{
				Field: "list", Error: fmt.Sprintf("chapters %s and %s share position %d", other, item.ID, item.Position),
			})
		}
		positions[item.Position] = item.ID
	}
	for _, item := range req.List {
		if !isValidID(item.ID) {
			return ErrNotFound
		}
	}

	if err := svc.repo.ReorderChapters(ctx, courseID, req.List, NowFunc().UTC()); err != nil {
		switch errors.Cause(err) {
		case ErrNotFound:
			return ErrNotFound
		case ErrPositionConflict:
			return core.NewValidationError(ErrPositionConflict, core.FieldError{Field: "list", Error: ErrPositionConflict.Error()})
		}
		return errors.Wrap(err, "reordering chapters")
	}
	return nil
}

func (svc *Service) CreateAttachment(ctx context.Context, callerID, courseID string, na NewAttachment) (Attachment, error) {
	if _, err := svc.Authorize(ctx, callerID, courseID); err != nil {
		return Attachment{}, err
	}
	if err := na.Validate(svc.validate); err != nil {
		return Attachment{}, err
	}

	now := NowFunc().UTC()
	att, err := svc.repo.CreateAttachment(ctx, Attachment{
		CourseID:  courseID,
		Name:      na.Name(),
		URL:       na.URL,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Attachment{}, errors.Wrap(err, "creating attachment")
	}
	return att, nil
}

// DeleteAttachment deletes one attachment of the course.
// While a deletion of `attachmentID` is in flight, other deletions of it fail with ErrDeleteInProgress.
func (svc *Service) DeleteAttachment(ctx context.Context, callerID, courseID, attachmentID string) error {
	if _, err := svc.Authorize(ctx, callerID, courseID); err != nil {
		return err
	}
	if !isValidID(attachmentID) {
		return ErrNotFound
	}

	if err := svc.deletions.Begin(attachmentID); err != nil {
		return err
	}
	defer svc.deletions.End(attachmentID)

	if err := svc.repo.DeleteAttachment(ctx, courseID, attachmentID); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return ErrNotFound
		}
		return errors.Wrap(err, "deleting attachment")
	}
	return nil
}

// DeletionState reports whether a deletion of `attachmentID` is currently in flight.
func (svc *Service) DeletionState(attachmentID string) DeletionState {
	return svc.deletions.State(attachmentID)
}

func (svc *Service) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := svc.repo.QueryCategories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	return categories, nil
}

// SeedCategories creates the given categories, skipping the existing ones.
func (svc *Service) SeedCategories(ctx context.Context, names ...string) (int, error) {
	cleaned := make([]string, 0, len(names))
	for _, name := range names {
		if name = core.CleanString(name); name != "" {
			cleaned = append(cleaned, name)
		}
	}
	n, err := svc.repo.CreateCategories(ctx, cleaned...)
	if err != nil {
		return 0, errors.Wrap(err, "creating categories")
	}
	return n, nil
}
