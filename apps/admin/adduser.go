package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(uname, email, pwd, schoolID string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{
			ID:        uuid.New().String(),
			Username:  uname,
			Email:     email,
			SchoolID:  schoolID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if isAdmin {
			usr.Roles = user.GlobalRoles
		} else {
			usr.Roles = []string{user.RoleSchoolAdmin}
		}
		usr.SetActive(true)
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		_, err = cli.usrRepo.CreateUser(ctx, usr)
		return err
	}

	if isAdmin {
		usr.Roles = user.GlobalRoles
	}
	usr.SetActive(true)
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	isActive := true
	_, err = cli.usrRepo.UpdateUser(ctx, usr, &isActive)
	return err
}
