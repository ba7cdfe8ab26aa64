package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edufee/core/fee"
	"github.com/trezcool/edufee/core/user"
	sqlxrepos "github.com/trezcool/edufee/storage/database/sqlx"
	"github.com/trezcool/edufee/tests"
)

var (
	usrRepo user.Repository
	feeRepo fee.Repository
)

func setup(t *testing.T) *commandLine {
	// set up DB & repos
	db := testutil.PrepareDB(t)
	usrRepo = sqlxrepos.NewUserRepository(db)
	feeRepo = sqlxrepos.NewFeeRepository(db)

	// start CLI
	return &commandLine{
		db:      db,
		usrRepo: usrRepo,
		feeSvc:  fee.NewService(feeRepo, sqlxrepos.NewStudentRepository(db)),
		out:     new(bytes.Buffer),
	}
}

func mockMigrate(t *testing.T, fn func(ctx context.Context, db *sqlx.DB, command string, args ...string) error) {
	orig := migrateFunc
	migrateFunc = fn
	t.Cleanup(func() { migrateFunc = orig })
}

func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_help(t *testing.T) {
	cli := setup(t)
	assert.Equal(t, errHelp, cli.run(context.Background(), nil))
	assert.Error(t, cli.run(context.Background(), []string{"lol"}))
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	mockMigrate(t, func(_ context.Context, _ *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	})

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErrStr: "requires at least 1 arg(s), only received 0"},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(context.Background(), tt.args))
		})
	}
}

func Test_commandLine_migrateStatus(t *testing.T) {
	cli := setup(t)
	mockMigrate(t, func(ctx context.Context, db *sqlx.DB, command string, args ...string) error {
		assert.Equal(t, cli.db, db)
		assert.Equal(t, "status", command)
		assert.Empty(t, args)
		return nil
	})
	require.NoError(t, cli.run(context.Background(), []string{"migrate", "status"}))
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	existing := testutil.CreateUser(t, usrRepo, "Meena", "meena", "meena@school.in", "old-pwd", user.RoleTeacher, false)

	tests := []cliTest{
		{name: "username required", args: []string{"adduser"}, extra: "pwd", wantErrStr: `required flag(s) "username" not set`},
		{name: "empty password", args: []string{"adduser", "--username", "admin"}, wantErr: errEmptyPassword},
		{name: "unknown role", args: []string{"adduser", "--username", "admin", "--role", "owner"}, extra: "pwd", wantErrStr: `unknown role "owner"`},
		{name: "create admin", args: []string{"adduser", "--username", " Admin ", "--email", "admin@school.in"}, extra: "Sup3r-Secret!"},
		{name: "update existing", args: []string{"adduser", "--username", "meena", "--role", "accountant"}, extra: "N3w-Secret!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pwd, _ := tt.extra.(string)
			mockPassword(t, pwd)
			tt.check(t, cli.run(context.Background(), tt.args))
		})
	}

	admin, err := usrRepo.GetUser(context.Background(), user.GetFilter{Username: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "admin@school.in", admin.Email)
	assert.Equal(t, user.RoleAdmin, admin.Role)
	assert.True(t, admin.IsActive)
	assert.NoError(t, admin.CheckPassword("Sup3r-Secret!"))

	meena, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: existing.ID})
	require.NoError(t, err)
	assert.Equal(t, "Meena", meena.Name)
	assert.Equal(t, "meena@school.in", meena.Email)
	assert.Equal(t, user.RoleAccountant, meena.Role)
	assert.True(t, meena.IsActive)
	assert.NoError(t, meena.CheckPassword("N3w-Secret!"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "mdr", user.RoleTeacher, true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, extra: "lol", wantErrStr: `required flag(s) "username" not set`},
		{name: "username but no password", args: []string{"resetpassword", "--username", "awe"}, wantErr: errEmptyPassword},
		{name: "user not found", args: []string{"resetpassword", "--username", "lol"}, extra: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "--username", usr.Username}, extra: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "--username", "AWE@test.cd"}, extra: "lmao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pwd, _ := tt.extra.(string)
			mockPassword(t, pwd)
			err := cli.run(context.Background(), tt.args)
			tt.check(t, err)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				assert.NoError(t, refreshedUsr.CheckPassword(pwd))
			}
		})
	}
}

func Test_commandLine_seed(t *testing.T) {
	cli := setup(t)
	custom := testutil.CreateFee(t, feeRepo, "5", 1, 1)

	require.NoError(t, cli.run(context.Background(), []string{"seed"}))
	assert.Contains(t, cli.out.(*bytes.Buffer).String(), fmt.Sprintf("%d fee structures created", len(fee.DefaultFees())-1))

	fees, err := feeRepo.QueryFees(context.Background())
	require.NoError(t, err)
	assert.Len(t, fees, len(fee.DefaultFees()))

	five, err := feeRepo.GetFee(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, custom.Total, five.Total)

	// idempotent
	require.NoError(t, cli.run(context.Background(), []string{"seed"}))
	assert.Contains(t, cli.out.(*bytes.Buffer).String(), "0 fee structures created")
}
