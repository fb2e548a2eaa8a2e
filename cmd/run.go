package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lhecker/semd/buffer"
	"github.com/lhecker/semd/client"
	"github.com/lhecker/semd/programs"
	"github.com/lhecker/semd/semaphore"
	"github.com/lhecker/semd/syscalls"
	"github.com/lhecker/semd/tickets"
)

var (
	remoteURL string

	runCmd = &cobra.Command{
		Use:       "run <program>",
		Short:     "Run a user program against the system call interface",
		Long:      "Run a user program against the system call interface.\n\nPrograms: " + strings.Join(programs.Names(), ", "),
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: programs.Names(),
		RunE:      runRun,
	}
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&remoteURL, "remote", "", `use the semaphores of the semd server at this URL`)
}

func runRun(cmd *cobra.Command, args []string) error {
	var (
		cfg    = singletons.Config
		logger = singletons.Logger
	)

	program, ok := programs.Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown program %q", args[0])
	}

	var sems semaphore.Interface
	if len(remoteURL) != 0 {
		c, err := client.New(nil, remoteURL)
		if err != nil {
			return err
		}
		sems = c
	} else {
		sems = semaphore.NewTable(cfg.Capacity, semaphore.WithLogger(logger.Named("semaphore")))
	}

	k := syscalls.NewKernel(
		sems,
		buffer.NewRing(cfg.BufferSize),
		tickets.NewRegistry(),
		syscalls.WithCipherKey(byte(cfg.CipherKey)),
		syscalls.WithLogger(logger.Named("syscalls")),
	)

	err := program(terminationSignalContext(), k, logger.Named(args[0]))
	if err != nil {
		return fmt.Errorf("%s failed: %w", args[0], err)
	}

	logger.Info("program passed", zap.String("program", args[0]))
	return nil
}
