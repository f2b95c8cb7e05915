package regdata

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/fetcher"
)

// LoaderConfig describes one registry bulk dataset.
type LoaderConfig struct {
	// URL of the CSV file; http(s):// or ftp:// schemes are supported.
	URL string `yaml:"url" mapstructure:"url"`
	// State code applied to every row when the file has no state column.
	State string `yaml:"state" mapstructure:"state"`
	// Column indices in the source CSV.
	NameCol   int `yaml:"name_col" mapstructure:"name_col"`
	StatusCol int `yaml:"status_col" mapstructure:"status_col"`
	TypeCol   int `yaml:"type_col" mapstructure:"type_col"`
	YearCol   int `yaml:"year_col" mapstructure:"year_col"`
	StateCol  int `yaml:"state_col" mapstructure:"state_col"` // -1 = use State
}

// Loader streams a registry CSV into the store.
type Loader struct {
	store *Store
	http  fetcher.Fetcher
	ftp   fetcher.Fetcher
}

// NewLoader creates a loader over the given store and fetchers.
func NewLoader(store *Store, httpFetcher, ftpFetcher fetcher.Fetcher) *Loader {
	return &Loader{store: store, http: httpFetcher, ftp: ftpFetcher}
}

// Load downloads the configured dataset and upserts every row. Returns
// the number of rows loaded.
func (l *Loader) Load(ctx context.Context, cfg LoaderConfig) (int, error) {
	f := l.http
	if strings.HasPrefix(cfg.URL, "ftp://") {
		f = l.ftp
	}

	body, err := f.Download(ctx, cfg.URL)
	if err != nil {
		return 0, eris.Wrapf(err, "regdata: download %s", cfg.URL)
	}
	defer body.Close()

	rowCh, errCh := fetcher.StreamCSV(ctx, body, fetcher.CSVOptions{HasHeader: true})

	loaded := 0
	skipped := 0
	for row := range rowCh {
		e, ok := entityFromRow(row, cfg)
		if !ok {
			skipped++
			continue
		}
		if err := l.store.Upsert(ctx, e); err != nil {
			return loaded, err
		}
		loaded++
	}
	if err := <-errCh; err != nil {
		return loaded, err
	}

	zap.L().Info("regdata: dataset loaded",
		zap.String("url", cfg.URL),
		zap.Int("rows", loaded),
		zap.Int("skipped", skipped),
	)
	return loaded, nil
}

func entityFromRow(row []string, cfg LoaderConfig) (Entity, bool) {
	col := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	name := col(cfg.NameCol)
	if name == "" {
		return Entity{}, false
	}

	state := cfg.State
	if cfg.StateCol >= 0 {
		if s := col(cfg.StateCol); s != "" {
			state = s
		}
	}
	if state == "" {
		return Entity{}, false
	}

	year := 0
	if y := col(cfg.YearCol); y != "" {
		// Tolerate full dates; the year prefix is enough.
		if len(y) >= 4 {
			year, _ = strconv.Atoi(y[:4])
		}
	}

	return Entity{
		NameKey:           NameKey(name),
		LegalName:         name,
		State:             strings.ToUpper(state),
		Status:            strings.ToLower(col(cfg.StatusCol)),
		EntityType:        col(cfg.TypeCol),
		IncorporationYear: year,
	}, true
}
