package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/edufee/core/fee"
	"github.com/trezcool/edufee/core/user"
	"github.com/trezcool/edufee/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword       // mockable
	migrateFunc      = database.RunMigrations // mockable

	errHelp          = errors.New("help provided")
	errEmptyPassword = errors.New("password cannot be empty")
)

type commandLine struct {
	db      *sqlx.DB
	usrRepo user.Repository
	feeSvc  fee.Service
	out     io.Writer
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	out := cli.out
	if out == nil {
		out = os.Stdout
	}
	_, _ = fmt.Fprintf(out, format, args...)
}

// readPassword prompts for a password on the terminal.
func (cli *commandLine) readPassword() (string, error) {
	cli.printf("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.printf("\n")
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errEmptyPassword
	}
	return string(pwd), nil
}

func (cli *commandLine) rootCmd(ctx context.Context) *cobra.Command {
	root := &cobra.Command{
		Use:           "edufee-admin",
		Short:         "EduFee administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)

	root.AddCommand(cli.migrateCmd(ctx))
	root.AddCommand(cli.addUserCmd(ctx))
	root.AddCommand(cli.resetPasswordCmd(ctx))
	root.AddCommand(cli.seedCmd(ctx))
	return root
}

// run executes the command line; args exclude the program name.
func (cli *commandLine) run(ctx context.Context, args []string) error {
	if args == nil {
		args = []string{} // cobra falls back to os.Args on nil
	}
	root := cli.rootCmd(ctx)
	root.SetArgs(args)
	return root.Execute()
}

func (cli *commandLine) migrateCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a database migrations command (up, up-by-one, up-to, down, down-to, redo, reset, status, version)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.migrate(ctx, args)
		},
	}
}

func (cli *commandLine) addUserCmd(ctx context.Context) *cobra.Command {
	var (
		uname, email, name, role string
	)
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user or update an existing one; the password is prompted",
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := cli.readPassword()
			if err != nil {
				return err
			}
			usr, err := cli.addUser(ctx, name, uname, email, pwd, role)
			if err != nil {
				return err
			}
			cli.printf("user %q saved with role %q\n", usr.Username, usr.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&uname, "username", "", "the user's username")
	cmd.Flags().StringVar(&email, "email", "", "the user's email")
	cmd.Flags().StringVar(&name, "name", "", "the user's full name")
	cmd.Flags().StringVar(&role, "role", user.RoleAdmin, "one of admin, accountant, teacher, parent")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (cli *commandLine) resetPasswordCmd(ctx context.Context) *cobra.Command {
	var uname string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password; the password is prompted",
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := cli.readPassword()
			if err != nil {
				return err
			}
			if err := cli.resetPassword(ctx, uname, pwd); err != nil {
				return err
			}
			cli.printf("password updated\n")
			return nil
		},
	}
	cmd.Flags().StringVar(&uname, "username", "", "the user's username or email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (cli *commandLine) seedCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default fee structures of the missing classes",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := cli.feeSvc.Seed(ctx)
			if err != nil {
				return err
			}
			cli.printf("%d fee structures created\n", n)
			return nil
		},
	}
}
