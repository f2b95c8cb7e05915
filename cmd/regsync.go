package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/fetcher"
	"github.com/sells-group/prospector/internal/regdata"
)

var regsyncCmd = &cobra.Command{
	Use:   "regsync",
	Short: "Sync the state business registry dataset",
	Long:  "Downloads the configured state's business entity CSV (http or ftp) and loads it into the local registry database used by the registry lookup pass.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("regsync"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := regdata.Open(cfg.Registry.Path)
		if err != nil {
			return eris.Wrap(err, "open registry store")
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate registry store")
		}

		httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent: "prospector-regsync",
			Timeout:   5 * time.Minute,
		})
		ftpFetcher := fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout: 5 * time.Minute,
		})

		loader := regdata.NewLoader(store, httpFetcher, ftpFetcher)

		start := time.Now()
		rows, err := loader.Load(ctx, regdata.LoaderConfig{
			URL:       cfg.Registry.URL,
			State:     cfg.Registry.State,
			NameCol:   cfg.Registry.NameCol,
			StatusCol: cfg.Registry.StatusCol,
			TypeCol:   cfg.Registry.TypeCol,
			YearCol:   cfg.Registry.YearCol,
			StateCol:  cfg.Registry.StateCol,
		})
		if err != nil {
			return eris.Wrap(err, "load registry dataset")
		}

		total, err := store.Count(ctx)
		if err != nil {
			return eris.Wrap(err, "count registry entities")
		}

		zap.L().Info("registry sync complete",
			zap.String("state", cfg.Registry.State),
			zap.Int("rows_loaded", rows),
			zap.Int("total_entities", total),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(regsyncCmd)
}
