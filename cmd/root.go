package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lhecker/semd/config"
	"github.com/lhecker/semd/database"
)

const (
	// Commands carrying this annotation get singletons.Database opened for them.
	annotationDatabase = "database"
	// Commands carrying this annotation run on the default configuration
	// and never read a config file, which might be broken.
	annotationNoConfig = "no-config"
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	configFile string
	silent     bool

	rootCmd = &cobra.Command{
		Use:   "semd",
		Short: "A blocking counting-semaphore service",
	}
)

func init() {
	// By setting these members here we break an initialization loop between rootCmd (C) and rootPersistentPreRunE (R):
	// Otherwise C refers to R which in turn refers back to C, in the implementation of the silent flag.
	rootCmd.PersistentPreRunE = rootPersistentPreRunE
	rootCmd.PersistentPostRun = rootPersistentPostRun

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", `config file (default "./semd.toml")`)
	rootCmd.PersistentFlags().BoolVarP(&silent, "silent", "s", false, `Silent or quiet mode`)
}

func rootPersistentPreRunE(cmd *cobra.Command, args []string) error {
	if silent {
		rootCmd.SilenceErrors = true
		rootCmd.SilenceUsage = true
	}

	for _, f := range []func(cmd *cobra.Command) error{
		initConfig,
		initLogger,
		initDatabase,
	} {
		err := f(cmd)
		if err != nil {
			return err
		}
	}

	return nil
}

func rootPersistentPostRun(cmd *cobra.Command, args []string) {
	for _, f := range []func(){
		deinitDatabase,
		deinitLogger,
	} {
		f()
	}
}

func initConfig(cmd *cobra.Command) (err error) {
	if _, ok := cmd.Annotations[annotationNoConfig]; ok {
		singletons.Config = config.Default()
		return nil
	}

	singletons.Config, err = config.Load(viper.New(), configFile)
	return
}

func initLogger(cmd *cobra.Command) error {
	var cfg zap.Config
	switch singletons.Config.LogFormat {
	case "json":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return fmt.Errorf("unknown log_format %q", singletons.Config.LogFormat)
	}

	level, err := zapcore.ParseLevel(singletons.Config.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log_level: %w", err)
	}
	if silent && level < zapcore.ErrorLevel {
		level = zapcore.ErrorLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	singletons.Logger, err = cfg.Build()
	return err
}

func initDatabase(cmd *cobra.Command) (err error) {
	if _, ok := cmd.Annotations[annotationDatabase]; !ok {
		return nil
	}

	singletons.Database, err = database.NewDatabase(singletons.Config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", singletons.Config.Database, err)
	}
	return nil
}

func deinitDatabase() {
	if singletons.Database == nil {
		return
	}

	err := singletons.Database.Close()
	if err != nil {
		singletons.Logger.Error("failed to close database", zap.Error(err))
	}
}

func deinitLogger() {
	if singletons.Logger == nil {
		return
	}

	// Syncing stderr fails with EINVAL on some platforms.
	_ = singletons.Logger.Sync()
}
