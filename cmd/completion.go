package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
)

var (
	completionCmd = &cobra.Command{
		Use:   "completion",
		Short: "Generate shell completion scripts",
		Annotations: map[string]string{
			annotationNoConfig: "",
		},
	}

	shells = map[string]func(io.Writer) error{
		"bash": rootCmd.GenBashCompletion,
		"zsh":  rootCmd.GenZshCompletion,
		"fish": func(w io.Writer) error {
			return rootCmd.GenFishCompletion(w, true)
		},
		"powershell": rootCmd.GenPowerShellCompletionWithDesc,
	}

	sourceHints = map[string]string{
		"bash":       "source <(semd completion bash)",
		"zsh":        "semd completion zsh > \"${fpath[1]}/_semd\"",
		"fish":       "semd completion fish | source",
		"powershell": "semd completion powershell | Out-String | Invoke-Expression",
	}
)

func init() {
	// Ours replaces the generated one.
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(completionCmd)

	names := make([]string, 0, len(shells))
	for shell := range shells {
		names = append(names, shell)
	}
	sort.Strings(names)

	for _, shell := range names {
		completionCmd.AddCommand(&cobra.Command{
			Use:         shell,
			Short:       fmt.Sprintf("Generate a %s completion script", shell),
			Example:     sourceHints[shell],
			Args:        cobra.NoArgs,
			Annotations: completionCmd.Annotations,
			RunE:        makeCompletionCommandRunner(shells[shell]),
		})
	}
}

func makeCompletionCommandRunner(generator func(io.Writer) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return generator(cmd.OutOrStdout())
	}
}
