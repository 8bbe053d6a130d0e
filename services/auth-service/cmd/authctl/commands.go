package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/app"
	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/usecase"
)

var errUsage = errors.New("usage")

const usage = `usage: authctl <command> [flags]

commands:
  migrate          apply canonical store migrations
  reset-password   set a new password for -username
  seed-mirror      insert a mirror-only credential for -username and -email
`

// readPassword reads a password from the terminal without echo.
func readPassword(fd int) ([]byte, error) {
	return term.ReadPassword(fd)
}

type cli struct {
	out          io.Writer
	logger       *zerolog.Logger
	loadConfig   func() (*config.AuthServiceConfig, error)
	readPassword func(fd int) ([]byte, error)
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.out, usage)
		return errUsage
	}

	switch args[0] {
	case "migrate":
		return c.migrate(ctx)
	case "reset-password":
		return c.resetPassword(ctx, args[1:])
	case "seed-mirror":
		return c.seedMirror(ctx, args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(c.out, usage)
		return nil
	default:
		fmt.Fprintf(c.out, "unknown command %q\n\n%s", args[0], usage)
		return errUsage
	}
}

func (c *cli) migrate(ctx context.Context) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	db, dialect, err := repository.OpenCanonicalDB(ctx, c.logger, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Fprintf(c.out, "%s migrations applied\n", dialect)
	return nil
}

func (c *cli) resetPassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	fs.SetOutput(c.out)
	username := fs.String("username", "", "username of the canonical identity")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *username == "" {
		fs.Usage()
		return errUsage
	}

	password, err := c.promptPassword()
	if err != nil {
		return err
	}

	deps, err := c.dependencies(ctx)
	if err != nil {
		return err
	}
	defer deps.Close(ctx)

	if err := deps.Auth.ResetPassword(ctx, usecase.ResetPasswordParams{
		Username:    *username,
		NewPassword: password,
	}); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "password updated for %s\n", *username)
	return nil
}

func (c *cli) seedMirror(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("seed-mirror", flag.ContinueOnError)
	fs.SetOutput(c.out)
	username := fs.String("username", "", "username of the mirror credential")
	email := fs.String("email", "", "email of the mirror credential")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *username == "" || *email == "" {
		fs.Usage()
		return errUsage
	}

	password, err := c.promptPassword()
	if err != nil {
		return err
	}

	deps, err := c.dependencies(ctx)
	if err != nil {
		return err
	}
	defer deps.Close(ctx)

	if !deps.Mirror.Enabled() {
		return errors.New("credential mirror is not configured, set MONGO_URI")
	}

	passwordHash, err := deps.Hasher.Hash(password)
	if err != nil {
		return err
	}

	credential, err := deps.Mirror.Insert(ctx, *username, *email, passwordHash)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "mirror credential %s created for %s\n", credential.ID.Hex(), credential.Username)
	return nil
}

func (c *cli) promptPassword() (string, error) {
	fmt.Fprint(c.out, "Enter password: ")
	password, err := c.readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(c.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	return strings.TrimRight(string(password), "\r\n"), nil
}

func (c *cli) dependencies(ctx context.Context) (*app.Dependencies, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}

	return app.NewDependencies(ctx, cfg, c.logger)
}
