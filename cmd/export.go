package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/attempt"
	"github.com/sells-group/prospector/internal/model"
)

var (
	exportOut      string
	exportStage    string
	exportMinScore int
	exportLimit    int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export prospect records to an XLSX workbook",
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

		records, err := st.ListRecords(ctx, attempt.RecordFilter{
			Stage:    model.Stage(exportStage),
			MinScore: exportMinScore,
			Limit:    exportLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list records")
		}

		if err := writeWorkbook(exportOut, records); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("file", exportOut),
			zap.Int("records", len(records)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "prospects.xlsx", "output file path")
	exportCmd.Flags().StringVar(&exportStage, "stage", "", "filter by stage (new, enriched, qualified, review)")
	exportCmd.Flags().IntVar(&exportMinScore, "min-score", 0, "minimum qualification score")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "max records (0 = all)")
	rootCmd.AddCommand(exportCmd)
}

// exportColumns defines the sheet layout: header plus a value extractor
// per column.
var exportColumns = []struct {
	header string
	value  func(rec *model.ProspectRecord) string
}{
	{"Target Key", func(r *model.ProspectRecord) string { return r.Target.Key() }},
	{"Name", fieldCol(model.FieldName)},
	{"City", func(r *model.ProspectRecord) string { return r.Target.City }},
	{"State", func(r *model.ProspectRecord) string { return r.Target.State }},
	{"Website", fieldCol(model.FieldWebsite)},
	{"Phone", fieldCol(model.FieldPhone)},
	{"Address", fieldCol(model.FieldAddress)},
	{"Rating", fieldCol(model.FieldRating)},
	{"Reviews", fieldCol(model.FieldReviewCount)},
	{"Industry", fieldCol(model.FieldIndustry)},
	{"Employees", fieldCol(model.FieldEmployeeEstimate)},
	{"Revenue", fieldCol(model.FieldRevenueEstimate)},
	{"Registry Status", fieldCol(model.FieldRegistryStatus)},
	{"Confidence", func(r *model.ProspectRecord) string {
		return fmt.Sprintf("%.1f", r.OverallConfidence)
	}},
	{"Score", func(r *model.ProspectRecord) string {
		return fmt.Sprintf("%d", r.QualificationScore)
	}},
	{"Stage", func(r *model.ProspectRecord) string { return string(r.Stage) }},
	{"Conflicted Fields", conflictedCol},
	{"Updated", func(r *model.ProspectRecord) string {
		if r.UpdatedAt.IsZero() {
			return ""
		}
		return r.UpdatedAt.Format("2006-01-02 15:04")
	}},
}

func fieldCol(key model.FieldKey) func(*model.ProspectRecord) string {
	return func(r *model.ProspectRecord) string {
		v := r.FieldValue(key)
		if v == nil {
			return ""
		}
		switch x := v.(type) {
		case string:
			return x
		case float64:
			if x == float64(int64(x)) {
				return fmt.Sprintf("%d", int64(x))
			}
			return fmt.Sprintf("%.2f", x)
		case []string:
			return strings.Join(x, ", ")
		case []any:
			parts := make([]string, 0, len(x))
			for _, item := range x {
				parts = append(parts, fmt.Sprint(item))
			}
			return strings.Join(parts, ", ")
		default:
			return fmt.Sprint(v)
		}
	}
}

func conflictedCol(r *model.ProspectRecord) string {
	var conflicted []string
	for key, rf := range r.Fields {
		if rf.Conflicted {
			conflicted = append(conflicted, string(key))
		}
	}
	return strings.Join(conflicted, ", ")
}

func writeWorkbook(path string, records []model.ProspectRecord) error {
	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet("Prospects")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range exportColumns {
		header.AddCell().Value = col.header
	}

	for i := range records {
		rec := &records[i]
		row := sheet.AddRow()
		for _, col := range exportColumns {
			row.AddCell().Value = col.value(rec)
		}
	}

	if err := wb.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
