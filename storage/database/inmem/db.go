package inmemdb

import (
	"sync"

	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
)

// DB is an in-memory store. A single lock guards every table so that
// multi-row operations are applied atomically.
type DB struct {
	mu          sync.RWMutex
	users       map[string]*user.User
	courses     map[string]*course.Course
	chapters    map[string]*course.Chapter
	attachments map[string]*course.Attachment
	categories  map[string]*course.Category
}

func Open() *DB {
	return &DB{
		users:       make(map[string]*user.User),
		courses:     make(map[string]*course.Course),
		chapters:    make(map[string]*course.Chapter),
		attachments: make(map[string]*course.Attachment),
		categories:  make(map[string]*course.Category),
	}
}
