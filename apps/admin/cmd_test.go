package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose"
	"golang.org/x/term"

	"github.com/momentum-academy/portal/core/user"
	dummydb "github.com/momentum-academy/portal/storage/database/dummy"
	testutil "github.com/momentum-academy/portal/tests"
)

func setup(t *testing.T) (*commandLine, user.Repository) {
	db := testutil.OpenDB(t)
	usrRepo := dummydb.NewUserRepository(db)

	cli := &commandLine{
		db:        &sqlx.DB{},
		conf:      testutil.NewConfig(),
		usrRepo:   usrRepo,
		svcLogger: testutil.NewLogger(),
	}
	return cli, usrRepo
}

func mockPassword(t *testing.T, pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = term.ReadPassword })
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, cli *commandLine) {
	t.Helper()
	args := append([]string{"admin"}, tt.args...)
	err := cli.run(args)
	switch {
	case tt.wantErr != nil:
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err == nil || err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
		}
	default:
		if err != nil {
			t.Errorf("cli.run() unexpected error = %v", err)
		}
	}
}

func Test_commandLine_help(t *testing.T) {
	cli, _ := setup(t)
	mockPassword(t, "")

	tests := []cliTest{
		{name: "no subcommand", args: nil, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"lol"}, wantErr: errHelp},
		{name: "migrate: no args", args: []string{"migrate"}, wantErr: errHelp},
		{name: "adduser: no username or email", args: []string{"adduser"}, wantErr: errHelp},
		{name: "adduser: empty password", args: []string{"adduser", "-username", "bob"}, wantErr: errHelp},
		{name: "resetpassword: no username", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "watch: no username", args: []string{"watch"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.check(t, cli) })
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s requires a VERSION argument", command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create requires a NAME argument")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}
	t.Cleanup(func() { gooseRunFunc = goose.Run })

	tests := []cliTest{
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to requires a VERSION argument"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create requires a NAME argument"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.check(t, cli) })
	}
}

func Test_commandLine_addUser(t *testing.T) {
	ctx := context.Background()
	cli, usrRepo := setup(t)
	mockPassword(t, "Sup3r$trong")

	if err := cli.run([]string{"admin", "adduser", "-username", "Bob", "-email", "Bob@test.test"}); err != nil {
		t.Fatalf("adduser failed: %v", err)
	}
	usr, err := usrRepo.GetUserByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("created user not found: %v", err)
	}
	if usr.Email != "bob@test.test" || len(usr.Roles) != 0 {
		t.Errorf("created user = %+v, want lowered email and no roles", usr)
	}
	if usr.IsActive == nil || !*usr.IsActive {
		t.Error("created user is not active")
	}
	if err = usr.CheckPassword("Sup3r$trong"); err != nil {
		t.Errorf("created user password check failed: %v", err)
	}

	// running again for the same user promotes instead of duplicating
	mockPassword(t, "N3w$ecret!")
	if err = cli.run([]string{"admin", "adduser", "-username", "bob", "-admin"}); err != nil {
		t.Fatalf("adduser (update) failed: %v", err)
	}
	usr, err = usrRepo.GetUserByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("updated user not found: %v", err)
	}
	if !usr.IsAdmin() {
		t.Errorf("updated user roles = %v, want all roles", usr.Roles)
	}
	if err = usr.CheckPassword("N3w$ecret!"); err != nil {
		t.Errorf("updated user password check failed: %v", err)
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, usrRepo := setup(t)
	testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.test", "0ld$ecret!", []string{user.RoleStudent}, "11", true)

	mockPassword(t, "N3w$ecret!")
	if err := cli.run([]string{"admin", "resetpassword", "-username", "ghost"}); err != user.ErrNotFound {
		t.Errorf("resetpassword for unknown user: error = %v, want ErrNotFound", err)
	}

	if err := cli.run([]string{"admin", "resetpassword", "-username", "hero@test.test"}); err != nil {
		t.Fatalf("resetpassword failed: %v", err)
	}
	usr, err := usrRepo.GetUserByUsername(context.Background(), "hero")
	if err != nil {
		t.Fatalf("user not found: %v", err)
	}
	if err = usr.CheckPassword("N3w$ecret!"); err != nil {
		t.Errorf("new password check failed: %v", err)
	}
	if usr.CheckPassword("0ld$ecret!") == nil {
		t.Error("old password still works")
	}
}
