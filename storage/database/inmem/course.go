package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	crs.ID = uuid.New().String()
	crs.Chapters, crs.Attachments = nil, nil
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func compareCourses(a, b course.Course, ord core.DBOrdering) int {
	switch ord.Field {
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "price":
		var pa, pb float64
		if a.Price != nil {
			pa = *a.Price
		}
		if b.Price != nil {
			pb = *b.Price
		}
		switch {
		case pa < pb:
			return -1
		case pa > pb:
			return 1
		}
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	case "updated_at":
		return compareTimes(a.UpdatedAt, b.UpdatedAt)
	}
	return 0
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func (repo *courseRepository) QueryCourses(_ context.Context, ownerID string, ordering []core.DBOrdering) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]course.Course, 0)
	for _, crs := range repo.db.courses {
		if crs.OwnerID == ownerID {
			courses = append(courses, *crs)
		}
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}
	sort.SliceStable(courses, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareCourses(courses[i], courses[j], ord)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return courses[i].ID < courses[j].ID
	})
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, id string, uc course.UpdateCourse, updatedAt time.Time) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	crs, ok := repo.db.courses[id]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	if uc.CategoryID != nil && *uc.CategoryID != "" {
		if _, ok = repo.db.categories[*uc.CategoryID]; !ok {
			return course.Course{}, course.ErrUnknownCategory
		}
	}

	// only save set fields
	if uc.Title != nil {
		crs.Title = *uc.Title
	}
	if uc.Description != nil {
		crs.Description = *uc.Description
	}
	if uc.ImageURL != nil {
		crs.ImageURL = *uc.ImageURL
	}
	if uc.Price != nil {
		price := *uc.Price
		crs.Price = &price
	}
	if uc.CategoryID != nil {
		crs.CategoryID = *uc.CategoryID
	}
	if uc.IsPublished != nil {
		crs.IsPublished = *uc.IsPublished
	}
	crs.UpdatedAt = updatedAt
	return *crs, nil
}

func (repo *courseRepository) CreateChapter(_ context.Context, chap course.Chapter) (course.Chapter, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[chap.CourseID]; !ok {
		return course.Chapter{}, course.ErrNotFound
	}
	next := 0
	for _, c := range repo.db.chapters {
		if c.CourseID == chap.CourseID && c.Position >= next {
			next = c.Position + 1
		}
	}
	chap.ID = uuid.New().String()
	chap.Position = next
	repo.db.chapters[chap.ID] = &chap
	return chap, nil
}

// chaptersOf must be called with the lock held.
func (repo *courseRepository) chaptersOf(courseID string) []course.Chapter {
	chapters := make([]course.Chapter, 0)
	for _, c := range repo.db.chapters {
		if c.CourseID == courseID {
			chapters = append(chapters, *c)
		}
	}
	sort.Slice(chapters, func(i, j int) bool {
		a, b := chapters[i], chapters[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return chapters
}

func (repo *courseRepository) QueryChapters(_ context.Context, courseID string) ([]course.Chapter, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.chaptersOf(courseID), nil
}

func (repo *courseRepository) UpdateChapter(
	_ context.Context,
	courseID, chapterID string,
	uc course.UpdateChapter,
	updatedAt time.Time,
) (course.Chapter, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	chap, ok := repo.db.chapters[chapterID]
	if !ok || chap.CourseID != courseID {
		return course.Chapter{}, course.ErrNotFound
	}

	// only save set fields
	if uc.Title != nil {
		chap.Title = *uc.Title
	}
	if uc.Description != nil {
		chap.Description = *uc.Description
	}
	if uc.VideoURL != nil {
		chap.VideoURL = *uc.VideoURL
	}
	if uc.IsPublished != nil {
		chap.IsPublished = *uc.IsPublished
	}
	if uc.IsFree != nil {
		chap.IsFree = *uc.IsFree
	}
	chap.UpdatedAt = updatedAt
	return *chap, nil
}

func (repo *courseRepository) ReorderChapters(_ context.Context, courseID string, items []course.ReorderItem, updatedAt time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[courseID]; !ok {
		return course.ErrNotFound
	}
	for _, item := range items {
		chap, ok := repo.db.chapters[item.ID]
		if !ok || chap.CourseID != courseID {
			return course.ErrNotFound
		}
	}

	// compute the resulting order before writing anything
	newPositions := make(map[string]int, len(items))
	for _, item := range items {
		newPositions[item.ID] = item.Position
	}
	taken := make(map[int]struct{})
	for _, chap := range repo.db.chapters {
		if chap.CourseID != courseID {
			continue
		}
		pos := chap.Position
		if p, ok := newPositions[chap.ID]; ok {
			pos = p
		}
		if _, ok := taken[pos]; ok {
			return course.ErrPositionConflict
		}
		taken[pos] = struct{}{}
	}

	for _, item := range items {
		chap := repo.db.chapters[item.ID]
		chap.Position = item.Position
		chap.UpdatedAt = updatedAt
	}
	return nil
}

func (repo *courseRepository) CreateAttachment(_ context.Context, att course.Attachment) (course.Attachment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[att.CourseID]; !ok {
		return course.Attachment{}, course.ErrNotFound
	}
	att.ID = uuid.New().String()
	repo.db.attachments[att.ID] = &att
	return att, nil
}

func (repo *courseRepository) QueryAttachments(_ context.Context, courseID string) ([]course.Attachment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	attachments := make([]course.Attachment, 0)
	for _, att := range repo.db.attachments {
		if att.CourseID == courseID {
			attachments = append(attachments, *att)
		}
	}
	sort.Slice(attachments, func(i, j int) bool {
		a, b := attachments[i], attachments[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return attachments, nil
}

func (repo *courseRepository) DeleteAttachment(_ context.Context, courseID, attachmentID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	att, ok := repo.db.attachments[attachmentID]
	if !ok || att.CourseID != courseID {
		return course.ErrNotFound
	}
	delete(repo.db.attachments, attachmentID)
	return nil
}

func (repo *courseRepository) QueryCategories(_ context.Context) ([]course.Category, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	categories := make([]course.Category, 0, len(repo.db.categories))
	for _, cat := range repo.db.categories {
		categories = append(categories, *cat)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (repo *courseRepository) CreateCategories(_ context.Context, names ...string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var created int
	for _, name := range names {
		var exists bool
		for _, cat := range repo.db.categories {
			if cat.Name == name {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		cat := course.Category{ID: uuid.New().String(), Name: name}
		repo.db.categories[cat.ID] = &cat
		created++
	}
	return created, nil
}
