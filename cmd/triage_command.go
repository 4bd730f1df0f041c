package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"carvision/internal/container"
	"carvision/internal/domain/entity"
)

const reportFileName = "report.json"

func newTriageCommand(ctx *commandContext) *cobra.Command {
	var (
		params     container.InspectionParams
		reportPath string
	)

	cmd := &cobra.Command{
		Use:   "triage [flags] <image>...",
		Short: "Split model detections into damage and parts and highlight them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("threshold") {
				params.Threshold = ctx.cfg.Threshold
			}
			if !cmd.Flags().Changed("workers") {
				params.Workers = ctx.cfg.Workers
			}

			svc, err := ctx.container.NewInspection(cmd.Context(), params)
			if err != nil {
				return err
			}

			report, err := svc.RunBatch(cmd.Context(), args)
			if err != nil {
				return err
			}

			if reportPath == "" {
				reportPath = filepath.Join(params.OutputDir, reportFileName)
			}
			if err := writeJSONFile(reportPath, report); err != nil {
				return fmt.Errorf("write report: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Image", "Damage", "Parts", "Excluded", "Status"},
				batchRows(report),
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "Run %s: %d succeeded, %d failed. Report: %s\n",
				report.RunID, report.Succeeded, report.Failed, reportPath)

			if report.Interrupted {
				return context.Canceled
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d of %d images failed", report.Failed, len(report.Images))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&params.LabelsPath, "labels", "", "Recovery map written by merge")
	cmd.Flags().StringVar(&params.DetectionsPath, "detections", "", "Precomputed detections file")
	cmd.Flags().StringVar(&params.InferenceURL, "inference-url", "", "Inference service base URL")
	cmd.Flags().Float64Var(&params.Threshold, "threshold", 0.5, "Minimum detection score (exclusive)")
	cmd.Flags().StringVar(&params.OutputDir, "out-dir", "", "Directory for highlighted images")
	cmd.Flags().IntVar(&params.Workers, "workers", 4, "Images processed in parallel")
	cmd.Flags().StringVar(&reportPath, "report", "", "Report path (default <out-dir>/report.json)")
	cmd.MarkFlagsMutuallyExclusive("detections", "inference-url")
	_ = cmd.MarkFlagRequired("labels")

	return cmd
}

func batchRows(report *entity.BatchReport) [][]string {
	rows := make([][]string, 0, len(report.Images))
	for _, img := range report.Images {
		name := filepath.Base(img.Image)
		if img.Failed() {
			rows = append(rows, []string{name, "-", "-", "-", img.Error})
			continue
		}
		var damage, parts, excluded int
		if img.Result != nil {
			damage = len(img.Result.Damage)
			parts = len(img.Result.Part)
			excluded = len(img.Result.Excluded)
		}
		rows = append(rows, []string{
			name,
			strconv.Itoa(damage),
			strconv.Itoa(parts),
			strconv.Itoa(excluded),
			"ok",
		})
	}
	return rows
}
