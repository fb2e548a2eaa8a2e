package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lhecker/semd/buffer"
	"github.com/lhecker/semd/database"
	"github.com/lhecker/semd/semaphore"
	"github.com/lhecker/semd/server"
	"github.com/lhecker/semd/tickets"
)

var (
	serveCmd = &cobra.Command{
		Use:         "serve",
		Short:       "Serve the semaphore table over HTTP",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationDatabase: ""},
		RunE:        serveRun,
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serveRun(cmd *cobra.Command, args []string) error {
	var (
		cfg    = singletons.Config
		logger = singletons.Logger
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	table := semaphore.NewTable(cfg.Capacity, semaphore.WithLogger(logger.Named("semaphore")))
	ring := buffer.NewRing(cfg.BufferSize)

	handler := server.New(server.Options{
		Semaphores:  semaphore.Instrument(table, server.Metrics(registry)...),
		Table:       table,
		Buffer:      ring,
		Tickets:     tickets.NewRegistry(),
		CipherKey:   byte(cfg.CipherKey),
		MetricsPath: cfg.MetricsPath,
		Gatherer:    registry,
		Logger:      logger.Named("server"),
	})

	l, err := server.Listen(cfg.Listen, cfg.MaxConnections)
	if err != nil {
		return err
	}

	// Cancelling requestCtx aborts every blocked wait, which lets Shutdown
	// drain connections instead of running into its timeout.
	requestCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(logger),
		BaseContext:       func(net.Listener) context.Context { return requestCtx },
	}

	g, ctx := errgroup.WithContext(terminationSignalContext())

	g.Go(func() error {
		logger.Info("listening", zap.Stringer("addr", l.Addr()), zap.Int("capacity", cfg.Capacity))

		err := httpServer.Serve(l)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		cancelRequests()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	snap := &database.Snapshot{
		Taken:  time.Now(),
		Slots:  table.Snapshot(),
		Buffer: ring.Status(),
	}
	if serr := singletons.Database.SaveSnapshot(snap); serr != nil {
		logger.Error("failed to save snapshot", zap.Error(serr))
	} else {
		logger.Info("saved snapshot", zap.Time("taken", snap.Taken))
	}

	if err != nil && !isContextCanceledError(err) {
		return err
	}
	return nil
}
