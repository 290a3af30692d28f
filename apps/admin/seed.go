package main

import (
	"context"
	"fmt"

	"github.com/trezcool/academia/core/course"
)

// seed creates the default course categories. Running it twice is harmless.
func (cli *commandLine) seed() error {
	n, err := cli.courseSvc.SeedCategories(context.Background(), course.DefaultCategories...)
	if err != nil {
		return err
	}
	fmt.Printf("%d categories created\n", n)
	return nil
}
