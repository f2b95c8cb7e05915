package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/pipeline"
)

var (
	processName  string
	processCity  string
	processState string
	processForce bool
	processOnly  []int
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the research pipeline for a single target",
	Long:  "Runs the pass sequence for one business. A first run executes every pass; later runs execute only the passes still owed from previous attempts. Use --force to re-run everything.",
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

		target := model.Target{Name: processName, City: processCity, State: processState}

		att, rec, err := e.Coordinator.Run(ctx, target, pipeline.Options{
			Force:      processForce,
			OnlyPasses: processOnly,
		})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("processing complete",
			zap.String("target", target.Key()),
			zap.Int("passes_run", len(att.PassResults)),
			zap.Int("score", rec.QualificationScore),
			zap.String("stage", string(rec.Stage)),
		)

		return printJSON(struct {
			Attempt *model.ProcessingAttempt `json:"attempt"`
			Record  *model.ProspectRecord    `json:"record"`
		}{att, rec})
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func addTargetFlags(cmd *cobra.Command, name, city, state *string) {
	cmd.Flags().StringVar(name, "name", "", "business name (required)")
	cmd.Flags().StringVar(city, "city", "", "city")
	cmd.Flags().StringVar(state, "state", "", "two-letter state code")
	_ = cmd.MarkFlagRequired("name")
}

func init() {
	addTargetFlags(processCmd, &processName, &processCity, &processState)
	processCmd.Flags().BoolVar(&processForce, "force", false, "re-run all passes, ignoring prior successes")
	processCmd.Flags().IntSliceVar(&processOnly, "only-passes", nil, "run exactly these pass ids")
	rootCmd.AddCommand(processCmd)
}
