package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aptforge/aptforge/internal/config"
	"github.com/aptforge/aptforge/internal/deb"
	"github.com/aptforge/aptforge/internal/models"
	"github.com/aptforge/aptforge/internal/signer"
	"github.com/aptforge/aptforge/internal/testutil"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.RootDir = t.TempDir()
	return cfg
}

func newTestRepo(t *testing.T, cfg config.Config, sig signer.Signer) *Repository {
	t.Helper()
	r, err := Open(cfg, sig)
	require.NoError(t, err)
	return r
}

func ingest(t *testing.T, r *Repository, name, version, arch, dist, comp string) *models.PackageRecord {
	t.Helper()
	data := testutil.BuildDeb(testutil.ControlFields(name, version, arch))
	rec, err := r.Ingest(context.Background(), data, dist, comp)
	require.NoError(t, err)
	return rec
}

func TestIngestAndList(t *testing.T) {
	r := newTestRepo(t, testConfig(t), nil)

	rec := ingest(t, r, "curl", "7.88.1-1", "amd64", "stable", "main")
	assert.Equal(t, "curl", rec.Name)
	assert.Equal(t, "pool/main/c/curl/curl_7.88.1-1_amd64.deb", rec.Filename)
	assert.NotEmpty(t, rec.SHA256Sum)
	assert.Greater(t, rec.Size, int64(0))

	listed := r.List("stable", "main")
	require.Len(t, listed, 1)
	assert.Equal(t, *rec, listed[0])

	// other scopes stay empty
	assert.Empty(t, r.List("stable", "contrib"))
	assert.Empty(t, r.List("testing", "main"))
}

func TestIngestUnknownScope(t *testing.T) {
	r := newTestRepo(t, testConfig(t), nil)
	data := testutil.BuildDeb(testutil.ControlFields("curl", "1.0-1", "amd64"))

	_, err := r.Ingest(context.Background(), data, "sid", "main")
	assert.True(t, models.IsKind(err, models.ErrValidation))

	_, err = r.Ingest(context.Background(), data, "stable", "universe")
	assert.True(t, models.IsKind(err, models.ErrValidation))
}

func TestIngestMalformedArchive(t *testing.T) {
	r := newTestRepo(t, testConfig(t), nil)

	_, err := r.Ingest(context.Background(), []byte("not an archive"), "stable", "main")
	assert.True(t, models.IsKind(err, models.ErrValidation))
	assert.ErrorIs(t, err, deb.ErrMalformedArchive)
}

func TestIngestUnsupportedArchitecture(t *testing.T) {
	r := newTestRepo(t, testConfig(t), nil)
	data := testutil.BuildDeb(testutil.ControlFields("curl", "1.0-1", "riscv64"))

	_, err := r.Ingest(context.Background(), data, "stable", "main")
	assert.True(t, models.IsKind(err, models.ErrValidation))
	assert.ErrorIs(t, err, deb.ErrUnsupportedArchitecture)
}

func TestSupersessionNewestVersionWins(t *testing.T) {
	r := newTestRepo(t, testConfig(t), nil)

	ingest(t, r, "nginx", "1.24.0-1", "amd64", "stable", "main")
	ingest(t, r, "nginx", "1.24.0-2", "amd64", "stable", "main")
	ingest(t, r, "nginx", "1.22.1-9", "amd64", "stable", "main")

	listed := r.List("stable", "main")
	require.Len(t, listed, 1)
	assert.Equal(t, "1.24.0-2", listed[0].Version)

	// superseded versions stay in the pool
	data, err := r.pool.Fetch("pool/main/n/nginx/nginx_1.22.1-9_amd64.deb")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestSupersessionIsPerSlot(t *testing.T) {
	r := newTestRepo(t, testConfig(t), nil)

	ingest(t, r, "nginx", "1.24.0-1", "amd64", "stable", "main")
	ingest(t, r, "nginx", "1.24.0-1", "i386", "stable", "main")
	ingest(t, r, "nginx", "1.24.0-2", "amd64", "stable", "main")

	listed := r.List("stable", "main")
	require.Len(t, listed, 2)
	assert.Equal(t, "amd64", listed[0].Architecture)
	assert.Equal(t, "1.24.0-2", listed[0].Version)
	assert.Equal(t, "i386", listed[1].Architecture)
	assert.Equal(t, "1.24.0-1", listed[1].Version)
}

func TestArchAllListedOnce(t *testing.T) {
	r := newTestRepo(t, testConfig(t), nil)

	ingest(t, r, "fonts-dejavu", "2.37-2", "all", "stable", "main")

	listed := r.List("stable", "main")
	require.Len(t, listed, 1)
	assert.Equal(t, "all", listed[0].Architecture)
}

func TestRemove(t *testing.T) {
	r := newTestRepo(t, testConfig(t), nil)

	ingest(t, r, "zsh", "5.9-4", "amd64", "stable", "main")
	ingest(t, r, "zsh", "5.9-5", "amd64", "stable", "main")
	ingest(t, r, "zsh", "5.9-5", "i386", "stable", "main")

	// a specific version
	removed, err := r.Remove("stable", "main", "zsh", "5.9-5", "amd64")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	listed := r.List("stable", "main")
	require.Len(t, listed, 2)
	assert.Equal(t, "5.9-4", listed[0].Version)

	// every remaining version of the slot
	removed, err = r.Remove("stable", "main", "zsh", "", "amd64")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	listed = r.List("stable", "main")
	require.Len(t, listed, 1)
	assert.Equal(t, "i386", listed[0].Architecture)

	// absent slot
	removed, err = r.Remove("stable", "main", "zsh", "", "amd64")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestIngestStateWriteFailure(t *testing.T) {
	cfg := testConfig(t)
	r := newTestRepo(t, cfg, nil)

	// a directory squatting on the state path makes the snapshot
	// rename fail
	require.NoError(t, os.Mkdir(filepath.Join(cfg.RootDir, "state.json"), 0755))

	data := testutil.BuildDeb(testutil.ControlFields("curl", "1.0-1", "amd64"))
	_, err := r.Ingest(context.Background(), data, "stable", "main")
	assert.True(t, models.IsKind(err, models.ErrConsistency))
}

func TestStatePersistsAcrossOpen(t *testing.T) {
	cfg := testConfig(t)

	r := newTestRepo(t, cfg, nil)
	ingest(t, r, "curl", "7.88.1-1", "amd64", "stable", "main")
	ingest(t, r, "curl", "7.88.1-1", "amd64", "testing", "main")

	reopened := newTestRepo(t, cfg, nil)
	require.Len(t, reopened.List("stable", "main"), 1)
	require.Len(t, reopened.List("testing", "main"), 1)
	assert.Equal(t, r.List("stable", "main"), reopened.List("stable", "main"))
}

func TestPublicKeyWithoutSigner(t *testing.T) {
	r := newTestRepo(t, testConfig(t), nil)

	_, err := r.PublicKey()
	assert.ErrorIs(t, err, signer.ErrKeyNotFound)
}
