package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"carvision/internal/domain/entity"
	"carvision/internal/infrastructure/storage"
)

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var damagePath, partsPath, outPath, labelsPath string

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge a damage collection and a parts collection into one dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if damagePath == "" || partsPath == "" || outPath == "" {
				return errors.New("--damage, --parts and --out are required")
			}
			if labelsPath == "" {
				labelsPath = storage.DefaultMapPath(outPath)
			}

			report, err := ctx.container.MergeService.MergeFiles(cmd.Context(), damagePath, partsPath, outPath, labelsPath)
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Images", strconv.Itoa(report.Images)},
				{"Shared images", strconv.Itoa(report.SharedImages)},
				{"Categories", strconv.Itoa(report.Categories)},
				{"Annotations", strconv.Itoa(report.Annotations)},
				{"Dropped (damage)", strconv.Itoa(report.Dropped[entity.NamespaceDamage])},
				{"Dropped (part)", strconv.Itoa(report.Dropped[entity.NamespacePart])},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Merged", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintf(cmd.OutOrStdout(), "Dataset:      %s\nRecovery map: %s\nVersion:      %s\n", outPath, labelsPath, report.RecoveryMapVersion)
			return nil
		},
	}

	cmd.Flags().StringVar(&damagePath, "damage", "", "Damage collection (COCO JSON)")
	cmd.Flags().StringVar(&partsPath, "parts", "", "Parts collection (COCO JSON)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Merged dataset output path")
	cmd.Flags().StringVar(&labelsPath, "labels", "", "Recovery map output path (default <out>.labels.json)")

	return cmd
}
