package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	inspectCmd = &cobra.Command{
		Use:         "inspect",
		Short:       "Print the last snapshot taken at shutdown",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationDatabase: ""},
		RunE:        inspectRun,
	}

	inspectAll bool
)

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().BoolVarP(&inspectAll, "all", "a", false, `include free slots`)
}

func inspectRun(cmd *cobra.Command, args []string) error {
	snap, err := singletons.Database.LatestSnapshot()
	if err != nil {
		return err
	}
	if snap == nil {
		return errors.New("no snapshot recorded yet")
	}

	fmt.Printf("snapshot taken %s\n", snap.Taken.Format(time.RFC3339))
	fmt.Printf("buffer: count=%d produced=%d consumed=%d\n\n", snap.Buffer.Count, snap.Buffer.Produced, snap.Buffer.Consumed)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HANDLE\tALLOCATED\tVALUE\tWAITERS")
	for _, s := range snap.Slots {
		if !s.Allocated && !inspectAll {
			continue
		}
		fmt.Fprintf(w, "%d\t%t\t%d\t%d\n", s.Handle, s.Allocated, s.Value, s.Waiters)
	}
	return w.Flush()
}
