package shardsync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mirofedurco/EB-gridmaker/internal/model"
	"github.com/mirofedurco/EB-gridmaker/internal/store"
	"github.com/mirofedurco/EB-gridmaker/internal/testutil"
)

func seededStore(t *testing.T, ids ...int64) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "shard-a.db"), testutil.ToyLayout())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	_, err = s.BindGrid(ctx, testutil.ToyOrder(), 5)
	require.NoError(t, err)
	for _, id := range ids {
		require.NoError(t, s.InsertObservation(ctx, model.Observation{
			ID:     id,
			System: model.System{MassRatio: 1},
			Fluxes: map[string][]float64{
				"Kepler": {1, 0.9},
				"TESS":   {1, 0.8},
			},
		}))
	}
	return s
}

func TestPushPull_RoundTrip(t *testing.T) {
	ctx := context.Background()
	blobs := testutil.NewDirBlobs(t.TempDir())
	y, err := New(blobs, "shards", zap.NewNop())
	require.NoError(t, err)

	src := seededStore(t, 0, 4, 8)
	url, err := y.Push(ctx, src, "")
	require.NoError(t, err)
	assert.Contains(t, url, "shard-a.db")

	meta := blobs.Metadata("shards", "shard-a.db")
	require.NotNil(t, meta)
	assert.Equal(t, "3", meta[MetaParameters])
	assert.Equal(t, testutil.ToyOrder().Fingerprint(), meta[MetaFingerprint])

	dst := filepath.Join(t.TempDir(), "pulled.db")
	n, err := y.Pull(ctx, "shard-a.db", dst)
	require.NoError(t, err)
	assert.Positive(t, n)
	assert.NoFileExists(t, dst+".partial")

	pulled, err := store.Open(dst, testutil.ToyLayout())
	require.NoError(t, err)
	defer pulled.Close()

	params, curves, err := pulled.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), params)
	assert.Equal(t, int64(3), curves)

	pos, err := pulled.SearchForBreakpoint(ctx, []int64{0, 4, 8})
	require.NoError(t, err)
	assert.Equal(t, 2, pos, "the resume marker travels with the shard")
}

func TestPush_ExplicitBlobName(t *testing.T) {
	blobs := testutil.NewDirBlobs(t.TempDir())
	y, err := New(blobs, "shards", nil)
	require.NoError(t, err)

	_, err = y.Push(context.Background(), seededStore(t, 1), "run-7/lower.db")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(blobs.Root, "shards", "run-7", "lower.db"))
}

func TestPull_Errors(t *testing.T) {
	ctx := context.Background()
	blobs := testutil.NewDirBlobs(t.TempDir())
	y, err := New(blobs, "shards", nil)
	require.NoError(t, err)

	existing := filepath.Join(t.TempDir(), "exists.db")
	require.NoError(t, os.WriteFile(existing, nil, 0o644))
	_, err = y.Pull(ctx, "shard-a.db", existing)
	assert.True(t, model.IsConfig(err))

	_, err = y.Pull(ctx, "", filepath.Join(t.TempDir(), "x.db"))
	assert.True(t, model.IsConfig(err))

	blobs.Fail = errors.New("service unavailable")
	dst := filepath.Join(t.TempDir(), "failed.db")
	_, err = y.Pull(ctx, "shard-a.db", dst)
	assert.ErrorContains(t, err, "service unavailable")
	assert.NoFileExists(t, dst)
	assert.NoFileExists(t, dst+".partial")
}

func TestNew_RequiresContainer(t *testing.T) {
	_, err := New(testutil.NewDirBlobs(t.TempDir()), "", nil)
	assert.True(t, model.IsConfig(err))
}

func TestNewAzureBlobs(t *testing.T) {
	tests := []struct {
		name        string
		conn        string
		wantURL     string
		errContains string
	}{
		{
			name:        "empty connection string",
			errContains: "connection string is required",
		},
		{
			name:        "missing key",
			conn:        "AccountName=devstoreaccount1",
			errContains: "account name and key are required",
		},
		{
			name:    "azurite endpoint",
			conn:    "AccountName=devstoreaccount1;AccountKey=dGVzdA==;BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1/",
			wantURL: "http://127.0.0.1:10000/devstoreaccount1",
		},
		{
			name:    "public endpoint",
			conn:    "DefaultEndpointsProtocol=https;AccountName=atlas;AccountKey=dGVzdA==;EndpointSuffix=core.windows.net",
			wantURL: "https://atlas.blob.core.windows.net",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewAzureBlobs(tt.conn, nil)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, b.serviceURL)
		})
	}
}

func TestParseConnectionString(t *testing.T) {
	p := parseConnectionString("AccountName=a; AccountKey=k==;;bogus;BlobEndpoint=http://h/a")
	assert.Equal(t, map[string]string{
		"AccountName":  "a",
		"AccountKey":   "k==",
		"BlobEndpoint": "http://h/a",
	}, p)
}
