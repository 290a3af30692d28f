package main

import (
	"context"
	"fmt"

	"github.com/trezcool/academia/core/user"
)

func (cli *commandLine) addUser(name, uname, email, pwd string, roles []string) error {
	nu := user.NewUser{
		Name:     name,
		Username: uname,
		Email:    email,
		Password: pwd,
		Roles:    roles,
	}
	if err := nu.Validate(cli.validate); err != nil {
		return err
	}

	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return err
	}
	fmt.Printf("user %q created (id: %s)\n", usr.Username, usr.ID)
	return nil
}
