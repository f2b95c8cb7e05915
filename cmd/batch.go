package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/pipeline"
)

var (
	batchFile  string
	batchLimit int
	batchForce bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process targets from a CSV file",
	Long:  "Reads targets from a CSV file with columns name,city,state (header optional) and runs the pipeline for each, bounded by batch.max_concurrent_targets.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("process"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		f, err := os.Open(batchFile)
		if err != nil {
			return eris.Wrapf(err, "open %s", batchFile)
		}
		defer f.Close()

		targets, err := readTargets(f)
		if err != nil {
			return err
		}

		return processBatch(ctx, targets, batchLimit, cfg.Batch.MaxConcurrentTargets, func(ctx context.Context, target model.Target) (*model.ProspectRecord, error) {
			_, rec, err := e.Coordinator.Run(ctx, target, pipeline.Options{Force: batchForce})
			return rec, err
		})
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "CSV file of targets (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of targets to process (0 = all)")
	batchCmd.Flags().BoolVar(&batchForce, "force", false, "re-run all passes for every target")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

// readTargets parses name,city,state rows. A first row whose name column
// equals "name" is treated as a header and dropped.
func readTargets(r io.Reader) ([]model.Target, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var targets []model.Target
	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "parse targets csv")
		}
		if len(row) == 0 {
			continue
		}

		name := strings.TrimSpace(row[0])
		if first {
			first = false
			if strings.EqualFold(name, "name") {
				continue
			}
		}
		if name == "" {
			continue
		}

		t := model.Target{Name: name}
		if len(row) > 1 {
			t.City = strings.TrimSpace(row[1])
		}
		if len(row) > 2 {
			t.State = strings.TrimSpace(row[2])
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// runFunc is the callback signature for processing one target.
type runFunc func(ctx context.Context, target model.Target) (*model.ProspectRecord, error)

// processBatch applies limit, then processes targets concurrently. A
// failed target never aborts the batch.
func processBatch(ctx context.Context, targets []model.Target, limit, concurrency int, run runFunc) error {
	if len(targets) == 0 {
		zap.L().Info("no targets to process")
		return nil
	}

	if limit > 0 && len(targets) > limit {
		targets = targets[:limit]
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("targets", len(targets)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for _, target := range targets {
		g.Go(func() error {
			log := zap.L().With(zap.String("target", target.Key()))

			rec, err := run(gctx, target)
			if err != nil {
				failed.Add(1)
				log.Error("processing failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			log.Info("processing complete",
				zap.Int("score", rec.QualificationScore),
				zap.String("stage", string(rec.Stage)),
				zap.Float64("confidence", rec.OverallConfidence),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
