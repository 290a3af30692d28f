package main

import (
	"github.com/pkg/errors"

	"github.com/trezcool/academia/storage/database"
)

var (
	gooseRunFunc = database.RunMigrations // mockable

	errNoSQLDatabase = errors.New("migrations require the postgres engine")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQLDatabase
	}
	return gooseRunFunc(cli.db, args[0], args[1:]...)
}
