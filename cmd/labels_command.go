package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newLabelsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "labels <map.json>",
		Short: "Verify a recovery map and print its categories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recovery, err := ctx.container.Datasets.LoadRecoveryMap(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, 0, recovery.Len())
			for _, e := range recovery.Entries() {
				rows = append(rows, []string{
					strconv.FormatInt(e.MergedID, 10),
					string(e.Namespace),
					strconv.FormatInt(e.OriginalID, 10),
					e.Name,
					e.Supercategory,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Namespace", "Original ID", "Name", "Supercategory"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "Version: %s (verified)\n", recovery.Version())
			return nil
		},
	}
}
