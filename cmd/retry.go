package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/pipeline"
)

var (
	retryName  string
	retryCity  string
	retryState string
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-run only the passes still owed for a target",
	Long:  "Runs the passes in the target's retry set: previously failed passes plus passes never attempted. Requires at least one prior attempt.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("process"); err != nil {
			return err
		}

		ctx := cmd.Context()
		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		target := model.Target{Name: retryName, City: retryCity, State: retryState}

		status, err := e.Store.Status(ctx, target.Key(), e.Coordinator.PassIDs())
		if err != nil {
			return eris.Wrap(err, "load status")
		}
		if status == nil {
			return eris.Errorf("no attempts recorded for %s; use process instead", target.Key())
		}
		if len(status.NextRetryPasses) == 0 {
			zap.L().Info("nothing to retry", zap.String("target", target.Key()))
			return printJSON(status)
		}

		zap.L().Info("retrying passes",
			zap.String("target", target.Key()),
			zap.Ints("passes", status.NextRetryPasses),
		)

		att, rec, err := e.Coordinator.Run(ctx, target, pipeline.Options{})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		return printJSON(struct {
			Attempt *model.ProcessingAttempt `json:"attempt"`
			Record  *model.ProspectRecord    `json:"record"`
		}{att, rec})
	},
}

func init() {
	addTargetFlags(retryCmd, &retryName, &retryCity, &retryState)
	rootCmd.AddCommand(retryCmd)
}
