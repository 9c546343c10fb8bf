package main

import (
	"context"

	"github.com/trezcool/notex/core"
	"github.com/trezcool/notex/core/user"
)

// addUser creates an account with its profile, or resets the password of an existing one.
func (cli *commandLine) addUser(name, email, pwd string) error {
	data := user.NewUser{Name: name, Email: email, Password: pwd}
	if core.CleanString(data.Name) == "" {
		data.Name = user.DefaultName
	}
	if err := data.Validate(cli.validate); err != nil {
		return err
	}

	ctx := context.Background()
	uid, created, err := cli.accounts.SetPassword(ctx, data.Email, data.Password)
	if err != nil {
		return err
	}
	if created {
		if _, err = cli.users.CreateProfile(ctx, uid, data.Name, data.Email); err != nil {
			return err
		}
	}
	return nil
}
