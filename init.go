package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"github.com/wansing/editorial/core"
	"github.com/wansing/editorial/util"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// initOptions are the flags of the init subcommand.
type initOptions struct {
	insert   bool
	join     bool
	delete   bool
	list     bool
	password bool
	grant    string
	revoke   string
	group    string
	user     string
	seedFile string
}

func (o *initOptions) register(flags *pflag.FlagSet) {
	flags.BoolVar(&o.insert, "insert", false, "creates the given group or user")
	flags.BoolVar(&o.join, "join", false, "joins the given user to the given group")
	flags.BoolVar(&o.delete, "delete", false, "deletes the given group or user")
	flags.BoolVar(&o.list, "list", false, "lists all users with their roles and all groups")
	flags.BoolVar(&o.password, "password", false, "sets the password of the given user")
	flags.StringVar(&o.grant, "grant", "", "grants the `role` (AUTHOR, RESEARCHER, REVIEWER, EDITOR) to the given user")
	flags.StringVar(&o.revoke, "revoke", "", "revokes the `role` from the given user")
	flags.StringVar(&o.group, "group", "", "specifies a group `name`")
	flags.StringVar(&o.user, "user", "", "specifies a user by e-mail `address`")
	flags.StringVar(&o.seedFile, "seed", "", "creates the users of a yaml `file`")
}

func (o *initOptions) run(a *app) error {
	switch {
	case o.seedFile != "":
		return seed(a.auth, o.seedFile)
	case o.list:
		return list(a.auth, os.Stdout)
	case o.insert:
		if o.group != "" {
			if err := a.auth.InsertGroup(o.group); err != nil {
				return fmt.Errorf(`error creating group "%s": %w`, o.group, err)
			}
		}
		if o.user != "" {
			return insertUser(a.auth, o.user, readPassword)
		}
	case o.delete:
		if o.group != "" {
			if err := deleteGroup(a.auth, o.group); err != nil {
				return err
			}
		}
		if o.user != "" {
			return deleteUser(a.auth, o.user)
		}
	case o.password:
		if o.user == "" {
			return errors.New("--password requires --user")
		}
		return setPassword(a.auth, o.user, readPassword)
	case o.join:
		if o.group == "" || o.user == "" {
			return errors.New("--join requires --group and --user")
		}
		return join(a.auth, o.group, o.user)
	case o.grant != "":
		return grant(a.auth, o.grant, o.user)
	case o.revoke != "":
		return revoke(a.auth, o.revoke, o.user)
	default:
		return errors.New("nothing to do, see --help")
	}
	return nil
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	return pass, err
}

// promptPassword asks for a new password twice.
func promptPassword(name string, read func(prompt string) ([]byte, error)) (string, error) {

	pass1, err := read(fmt.Sprintf("password for user %s: ", name))
	if err != nil {
		return "", fmt.Errorf("error reading password: %w", err)
	}

	pass2, err := read("repeat password: ")
	if err != nil {
		return "", fmt.Errorf("error reading password: %w", err)
	}

	if !bytes.Equal(pass1, pass2) {
		return "", errors.New("passwords don't match")
	}
	if len(pass1) == 0 {
		return "", core.ErrEmptyPassword
	}
	return string(pass1), nil
}

func insertUser(auth *core.AuthDB, name string, read func(prompt string) ([]byte, error)) error {

	password, err := promptPassword(name, read)
	if err != nil {
		return err
	}

	user, err := auth.InsertUser(name)
	if err != nil {
		return fmt.Errorf("error creating user %s: %w", name, err)
	}

	if err := auth.SetPassword(user, password); err != nil {
		return fmt.Errorf("error setting password: %w", err)
	}
	return nil
}

func setPassword(auth *core.AuthDB, name string, read func(prompt string) ([]byte, error)) error {

	user, err := auth.GetUserByName(name)
	if err != nil {
		return fmt.Errorf("error getting user %s: %w", name, err)
	}

	password, err := promptPassword(name, read)
	if err != nil {
		return err
	}

	if err := auth.SetPassword(user, password); err != nil {
		return fmt.Errorf("error setting password: %w", err)
	}
	return nil
}

func deleteUser(auth *core.AuthDB, name string) error {

	user, err := auth.GetUserByName(name)
	if err != nil {
		return fmt.Errorf("error getting user %s: %w", name, err)
	}

	// UserDB.Delete keeps memberships
	groups, err := auth.GetGroupsOf(user)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if err := auth.Leave(group, user); err != nil {
			return fmt.Errorf("error leaving group %s: %w", group.Name(), err)
		}
	}

	if err := auth.UserDB.Delete(user); err != nil {
		return fmt.Errorf("error deleting user %s: %w", name, err)
	}
	return nil
}

func deleteGroup(auth *core.AuthDB, name string) error {

	group, err := auth.GetGroupByName(name)
	if err != nil {
		return fmt.Errorf("error getting group %s: %w", name, err)
	}

	if err := auth.GroupDB.Delete(group); err != nil {
		return fmt.Errorf("error deleting group %s: %w", name, err)
	}
	return nil
}

func userRole(auth *core.AuthDB, roleName, userName string) (core.DBUser, core.Role, error) {
	role, ok := core.ParseRole(roleName)
	if !ok {
		return nil, "", fmt.Errorf("unknown role: %s", roleName)
	}
	user, err := auth.GetUserByName(userName)
	if err != nil {
		return nil, "", fmt.Errorf("error getting user %s: %w", userName, err)
	}
	return user, role, nil
}

func grant(auth *core.AuthDB, roleName, userName string) error {
	user, role, err := userRole(auth, roleName, userName)
	if err != nil {
		return err
	}
	return auth.Grant(user, role)
}

func revoke(auth *core.AuthDB, roleName, userName string) error {
	user, role, err := userRole(auth, roleName, userName)
	if err != nil {
		return err
	}
	return auth.Revoke(user, role)
}

const listPageSize = 100

// list prints one line per user with their roles, then one line per group with its member count.
func list(auth *core.AuthDB, w io.Writer) error {

	for offset := 0; ; offset += listPageSize {
		users, err := auth.GetAllUsers(listPageSize, offset)
		if err != nil {
			return err
		}
		for _, u := range users {
			actor, err := auth.Actor(u)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "user  %s %v\n", u.Name(), actor.Roles.Slice())
		}
		if len(users) < listPageSize {
			break
		}
	}

	for offset := 0; ; offset += listPageSize {
		groups, err := auth.GetAllGroups(listPageSize, offset)
		if err != nil {
			return err
		}
		for _, g := range groups {
			members, err := g.Members()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "group %s %d\n", g.Name(), len(members))
		}
		if len(groups) < listPageSize {
			break
		}
	}
	return nil
}

func join(auth *core.AuthDB, groupname string, username string) error {

	group, err := auth.GetGroupByName(groupname)
	if err != nil {
		return fmt.Errorf("error getting group %s: %w", groupname, err)
	}

	user, err := auth.GetUserByName(username)
	if err != nil {
		return fmt.Errorf("error getting user %s: %w", username, err)
	}

	if err := auth.Join(group, user); err != nil {
		return fmt.Errorf("error joining: %w", err)
	}
	return nil
}

// SeedFile lists users which are created by "init --seed".
type SeedFile struct {
	Users []SeedUser `yaml:"users"`
}

type SeedUser struct {
	Email    string   `yaml:"email"`
	Password string   `yaml:"password"` // a random password is generated and printed if empty
	Roles    []string `yaml:"roles"`
}

func readSeedFile(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file = &SeedFile{}
	if err := yaml.Unmarshal(raw, file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for i, u := range file.Users {
		if u.Email == "" {
			return nil, fmt.Errorf("user %d has no email", i)
		}
		for _, r := range u.Roles {
			if _, ok := core.ParseRole(r); !ok {
				return nil, fmt.Errorf("user %s: unknown role %s", u.Email, r)
			}
		}
	}
	return file, nil
}

// seed creates the users of the file. Existing users keep their password, but get the listed roles.
func seed(auth *core.AuthDB, path string) error {

	file, err := readSeedFile(path)
	if err != nil {
		return err
	}

	for _, su := range file.Users {

		user, err := auth.GetUserByName(su.Email)
		if errors.Is(err, core.ErrNotFound) {
			user, err = auth.InsertUser(su.Email)
			if err != nil {
				return fmt.Errorf("error creating user %s: %w", su.Email, err)
			}
			var password = su.Password
			if password == "" {
				if password, err = util.RandomString32(); err != nil {
					return err
				}
				fmt.Printf("password for user %s: %s\n", su.Email, password)
			}
			if err := auth.SetPassword(user, password); err != nil {
				return fmt.Errorf("error setting password of %s: %w", su.Email, err)
			}
		} else if err != nil {
			return err
		}

		for _, r := range su.Roles {
			role, _ := core.ParseRole(r)
			if err := auth.Grant(user, role); err != nil {
				return fmt.Errorf("error granting %s to %s: %w", role, su.Email, err)
			}
		}
	}
	return nil
}
