package regdata

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "regdata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestNameKey(t *testing.T) {
	assert.Equal(t, "acme_plumbing", NameKey("Acme Plumbing, LLC"))
	assert.Equal(t, "acme_plumbing", NameKey("ACME PLUMBING INC"))
	assert.Equal(t, "acme_plumbing", NameKey("Acme Plumbing"))
	assert.Equal(t, "first_national_co_op", NameKey("First National Co-Op"))
}

func TestStore_FindByNameAndState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, Entity{
		NameKey: "acme_plumbing", LegalName: "Acme Plumbing LLC", State: "OK",
		Status: "active", EntityType: "LLC", IncorporationYear: 2011,
	}))
	require.NoError(t, s.Upsert(ctx, Entity{
		NameKey: "acme_plumbing", LegalName: "Acme Plumbing Inc", State: "TX",
		Status: "inactive", EntityType: "Corporation", IncorporationYear: 1998,
	}))

	e, err := s.Find(ctx, "Acme Plumbing, LLC", "ok")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "active", e.Status)
	assert.Equal(t, 2011, e.IncorporationYear)

	missing, err := s.Find(ctx, "Unknown Widgets", "OK")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_UpsertReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := Entity{NameKey: "acme", LegalName: "Acme", State: "OK", Status: "active"}
	require.NoError(t, s.Upsert(ctx, e))
	e.Status = "dissolved"
	require.NoError(t, s.Upsert(ctx, e))

	got, err := s.Find(ctx, "Acme", "OK")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "dissolved", got.Status)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// stubFetcher returns canned CSV content for any URL.
type stubFetcher struct {
	content string
}

func (f *stubFetcher) Download(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.content)), nil
}

func (f *stubFetcher) DownloadToFile(context.Context, string, string) (int64, error) {
	return 0, nil
}

func TestLoader_Load(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	csvData := "entity_name,status,type,filed,state\n" +
		"Acme Plumbing LLC,Active,LLC,2011-04-02,OK\n" +
		"Beta Roofing Inc,Inactive,Corporation,1998-11-20,TX\n" +
		",Active,LLC,2000-01-01,OK\n" // nameless row skipped

	loader := NewLoader(s, &stubFetcher{content: csvData}, nil)
	n, err := loader.Load(ctx, LoaderConfig{
		URL:     "https://registry.example/bulk.csv",
		NameCol: 0, StatusCol: 1, TypeCol: 2, YearCol: 3, StateCol: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	e, err := s.Find(ctx, "Beta Roofing", "TX")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "inactive", e.Status)
	assert.Equal(t, 1998, e.IncorporationYear)
}
