package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lhecker/semd/config"
	"github.com/lhecker/semd/database"
)

var (
	// This structure gets (de)initialized in the prerun and postrun hooks of the rootCmd.
	singletons = struct {
		Config   *config.Config
		Logger   *zap.Logger
		Database *database.Database
	}{}
)

func terminationSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		defer cancel()

		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
		defer signal.Stop(ch)

		<-ch
	}()

	return ctx
}

func isContextCanceledError(err error) bool {
	return errors.Is(err, context.Canceled)
}
