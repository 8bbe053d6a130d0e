// Command authctl runs operator tasks against the auth service stores.
//
//	authctl migrate
//	authctl reset-password -username alice
//	authctl seed-mirror -username alice -email alice@example.com
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/lang-app-api/shared/logging"
)

func main() {
	logger := logging.NewLogger("authctl", os.Getenv("LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{
		out:          os.Stdout,
		logger:       logger,
		loadConfig:   config.Load,
		readPassword: readPassword,
	}

	if err := c.run(ctx, os.Args[1:]); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "authctl:", err)
		}
		stop()
		os.Exit(1)
	}
}
