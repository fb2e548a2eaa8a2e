package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lhecker/semd/config"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	configInitCmd = &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE:  configInitRun,
		Annotations: map[string]string{
			annotationNoConfig: "",
		},
	}
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}

func configInitRun(cmd *cobra.Command, args []string) error {
	path := config.DefaultName + ".toml"
	if len(args) != 0 {
		path = args[0]
	}

	err := config.Default().Save(path)
	if err != nil {
		return err
	}

	singletons.Logger.Info("wrote configuration", zap.String("path", path))
	return nil
}
