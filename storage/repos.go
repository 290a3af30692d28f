package storage

import (
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/storage/database"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
)

const EngineInMemory = "inmem"

// Repositories bundles the repositories of every service.
// DB is nil when the in-memory engine is used.
type Repositories struct {
	DB     *sqlx.DB
	User   user.Repository
	Course course.Repository
}

var _ io.Closer = (*Repositories)(nil)

// OpenRepositories opens the database selected by conf.Database.Engine.
// When migrate is set, the postgres database is created if needed and migrated.
func OpenRepositories(conf *core.Config, migrate bool) (*Repositories, error) {
	if conf.Database.Engine == EngineInMemory {
		db := inmemdb.Open()
		return &Repositories{
			User:   inmemdb.NewUserRepository(db),
			Course: inmemdb.NewCourseRepository(db),
		}, nil
	}

	if migrate {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Ping(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "pinging database")
	}

	if migrate {
		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &Repositories{
		DB:     db,
		User:   sqlxrepos.NewUserRepository(db),
		Course: sqlxrepos.NewCourseRepository(db),
	}, nil
}

func (r *Repositories) Close() error {
	if r.DB == nil {
		return nil
	}
	return r.DB.Close()
}
