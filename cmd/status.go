package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospector/internal/model"
)

var (
	statusName  string
	statusCity  string
	statusState string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a target's attempt history summary and current record",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		target := model.Target{Name: statusName, City: statusCity, State: statusState}
		key := target.Key()

		specs, err := loadPassSpecs()
		if err != nil {
			return err
		}
		knownIDs := make([]int, len(specs))
		for i, s := range specs {
			knownIDs[i] = s.ID
		}

		status, err := st.Status(ctx, key, knownIDs)
		if err != nil {
			return eris.Wrap(err, "load status")
		}
		rec, err := st.GetRecord(ctx, key)
		if err != nil {
			return eris.Wrap(err, "load record")
		}

		out := map[string]any{
			"target_key": key,
			"status":     status,
			"record":     rec,
		}
		return printJSON(out)
	},
}

func init() {
	addTargetFlags(statusCmd, &statusName, &statusCity, &statusState)
	rootCmd.AddCommand(statusCmd)
}
