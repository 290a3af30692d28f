package main

import (
	"fmt"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/storage"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger("ADMIN : ", conf)

	// set up DB; migrations are run on demand
	repos, err := storage.OpenRepositories(conf, false /* migrate */)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}

	validate := newValidator()

	// start CLI
	cli := commandLine{
		usrSvc:    user.NewService(repos.User),
		courseSvc: course.NewService(repos.Course, validate),
		validate:  validate,
	}
	if repos.DB != nil {
		cli.db = repos.DB.DB
	}

	err = cli.run(os.Args)
	if cErr := repos.Close(); cErr != nil {
		logger.Error("Failed to close database", cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}

func newValidator() *validator.Validate {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}
