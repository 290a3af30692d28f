package course

import (
	"math"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Course struct {
	ID          string       `json:"id"`
	OwnerID     string       `json:"owner_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	ImageURL    string       `json:"image_url"`
	Price       *float64     `json:"price"`
	IsPublished bool         `json:"is_published"`
	CategoryID  string       `json:"category_id"`
	CreatedAt   time.Time    `json:"created_at"` // UTC
	UpdatedAt   time.Time    `json:"updated_at"` // UTC
	Chapters    []Chapter    `json:"chapters,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Chapter is ordered among its siblings by Position.
type Chapter struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	VideoURL    string    `json:"video_url"`
	Position    int       `json:"position"`
	IsPublished bool      `json:"is_published"`
	IsFree      bool      `json:"is_free"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type Attachment struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title string `json:"title" validate:"required,notblank_"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	return validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
// Nil fields are left untouched.
type UpdateCourse struct {
	Title       *string  `json:"title" validate:"omitempty,notblank_"`
	Description *string  `json:"description"`
	ImageURL    *string  `json:"image_url" validate:"omitempty,url"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	CategoryID  *string  `json:"category_id" validate:"omitempty,uuid"`
	IsPublished *bool    `json:"is_published"`
}

func (uc *UpdateCourse) IsEmpty() bool {
	return uc.Title == nil && uc.Description == nil && uc.ImageURL == nil &&
		uc.Price == nil && uc.CategoryID == nil && uc.IsPublished == nil
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	cleanStrPtr(uc.Title)
	cleanStrPtr(uc.Description)
	cleanStrPtr(uc.ImageURL)
	cleanStrPtr(uc.CategoryID)
	if err := checkNotBlank("title", uc.Title); err != nil {
		return err
	}
	return validate.Struct(uc)
}

// NewChapter contains information needed to create a new Chapter.
type NewChapter struct {
	Title string `json:"title" validate:"required,notblank_"`
}

func (nc *NewChapter) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	return validate.Struct(nc)
}

// UpdateChapter defines what information may be provided to modify an existing Chapter.
// Nil fields are left untouched. Position is changed through reordering only.
type UpdateChapter struct {
	Title       *string `json:"title" validate:"omitempty,notblank_"`
	Description *string `json:"description"`
	VideoURL    *string `json:"video_url" validate:"omitempty,url"`
	IsPublished *bool   `json:"is_published"`
	IsFree      *bool   `json:"is_free"`
}

func (uc *UpdateChapter) IsEmpty() bool {
	return uc.Title == nil && uc.Description == nil && uc.VideoURL == nil &&
		uc.IsPublished == nil && uc.IsFree == nil
}

func (uc *UpdateChapter) Validate(validate *validator.Validate) error {
	cleanStrPtr(uc.Title)
	cleanStrPtr(uc.Description)
	cleanStrPtr(uc.VideoURL)
	if err := checkNotBlank("title", uc.Title); err != nil {
		return err
	}
	return validate.Struct(uc)
}

// MaxPosition is the largest position the chapter.position column can hold.
const MaxPosition = math.MaxInt32

// ReorderItem assigns a new Position to the Chapter identified by ID.
type ReorderItem struct {
	ID       string `json:"id" validate:"required"`
	Position int    `json:"position" validate:"gte=0,lte=2147483647"`
}

type ReorderRequest struct {
	List []ReorderItem `json:"list" validate:"required,min=1,dive"`
}

func (rr *ReorderRequest) Validate(validate *validator.Validate) error {
	for i := range rr.List {
		rr.List[i].ID = core.CleanString(rr.List[i].ID)
	}
	return validate.Struct(rr)
}

// NewAttachment is sent once a file upload completed; URL is where the file now lives.
type NewAttachment struct {
	URL string `json:"url" validate:"required,url"`
}

func (na *NewAttachment) Validate(validate *validator.Validate) error {
	na.URL = core.CleanString(na.URL)
	return validate.Struct(na)
}

// Name derives the display name of the attachment from the last segment of its URL.
func (na NewAttachment) Name() string {
	u, err := url.Parse(na.URL)
	if err != nil {
		if name := na.URL[strings.LastIndex(na.URL, "/")+1:]; name != "" {
			return name
		}
		return na.URL
	}
	if base := path.Base(u.Path); base != "/" && base != "." {
		if name, err := url.PathUnescape(base); err == nil {
			return name
		}
		return base
	}
	if u.Host != "" {
		return u.Host
	}
	return na.URL
}

// checkNotBlank catches emptied strings, which `omitempty` lets through once dereferenced.
func checkNotBlank(field string, s *string) error {
	if s != nil && *s == "" {
		return core.NewValidationError(nil, core.FieldError{Field: field, Error: "this field cannot be blank"})
	}
	return nil
}

func cleanStrPtr(s *string) {
	if s != nil {
		*s = core.CleanString(*s)
	}
}
