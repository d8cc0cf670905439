package repo

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aptforge/aptforge/internal/models"
	"github.com/aptforge/aptforge/internal/release"
	"github.com/aptforge/aptforge/internal/signer"
	"github.com/aptforge/aptforge/internal/utils"
)

// brokenSigner fails every operation with a fixed error.
type brokenSigner struct {
	err error
}

func (b brokenSigner) SignCleartext(data []byte) ([]byte, error) { return nil, b.err }
func (b brokenSigner) SignDetached(data []byte) ([]byte, error)  { return nil, b.err }
func (b brokenSigner) PublicKey() ([]byte, error)                { return nil, b.err }

func newSignedRepo(t *testing.T) (*Repository, *openpgp.Entity) {
	t.Helper()

	entity, err := openpgp.NewEntity("Repo Signing", "", "repo@example.com", nil)
	require.NoError(t, err)

	r := newTestRepo(t, testConfig(t), signer.NewGPGSignerFromEntity(entity))
	return r, entity
}

func TestPublishUnsignedRefused(t *testing.T) {
	r := newTestRepo(t, testConfig(t), nil)
	ingest(t, r, "curl", "7.88.1-1", "amd64", "stable", "main")

	err := r.Publish(context.Background(), "stable")
	assert.True(t, models.IsKind(err, models.ErrSigning))

	// nothing may have been published
	_, err = r.Manifest("stable")
	assert.Error(t, err)
}

func TestPublishUnknownDistribution(t *testing.T) {
	r, _ := newSignedRepo(t)

	err := r.Publish(context.Background(), "sid")
	assert.True(t, models.IsKind(err, models.ErrValidation))
}

func TestPublishAndVerify(t *testing.T) {
	r, entity := newSignedRepo(t)
	ingest(t, r, "curl", "7.88.1-1", "amd64", "stable", "main")
	ingest(t, r, "fonts-dejavu", "2.37-2", "all", "stable", "main")

	require.NoError(t, r.Publish(context.Background(), "stable"))
	require.NoError(t, r.Verify("stable"))

	manifest, err := r.Manifest("stable")
	require.NoError(t, err)
	assert.Contains(t, string(manifest), "Suite: stable\n")
	assert.Contains(t, string(manifest), "Components: main contrib non-free\n")

	// the detached signature covers the published manifest bytes exactly
	sig, err := os.ReadFile(filepath.Join(r.distDir("stable"), "Release.gpg"))
	require.NoError(t, err)
	_, err = openpgp.CheckArmoredDetachedSignature(openpgp.EntityList{entity},
		bytes.NewReader(manifest), bytes.NewReader(sig), nil)
	assert.NoError(t, err)

	_, err = os.Stat(filepath.Join(r.distDir("stable"), "InRelease"))
	assert.NoError(t, err)

	// arch-independent packages appear in every architecture index
	for _, arch := range []string{"amd64", "i386"} {
		idx, err := r.ComponentIndex("stable", "main", arch)
		require.NoError(t, err)
		assert.Contains(t, string(idx), "Package: fonts-dejavu\n")
	}
	idx, err := r.ComponentIndex("stable", "main", "amd64")
	require.NoError(t, err)
	assert.Contains(t, string(idx), "Package: curl\n")

	key, err := os.ReadFile(filepath.Join(r.cfg.RootDir, "key.gpg"))
	require.NoError(t, err)
	assert.Contains(t, string(key), "BEGIN PGP PUBLIC KEY BLOCK")
}

func TestPublishManifestCoversEveryIndex(t *testing.T) {
	r, _ := newSignedRepo(t)
	ingest(t, r, "curl", "7.88.1-1", "amd64", "stable", "main")
	require.NoError(t, r.Publish(context.Background(), "stable"))

	manifest, err := r.Manifest("stable")
	require.NoError(t, err)
	_, entries, err := release.ParseManifest(manifest)
	require.NoError(t, err)

	// three variants per (component, architecture) pair
	assert.Len(t, entries, 3*2*3)
	for _, entry := range entries {
		sums, err := utils.ChecksumFile(filepath.Join(r.distDir("stable"), filepath.FromSlash(entry.Path)))
		require.NoError(t, err)
		assert.Equal(t, entry.Size, sums.Size, entry.Path)
		assert.Equal(t, entry.SHA256, sums.SHA256, entry.Path)
		assert.Equal(t, entry.SHA512, sums.SHA512, entry.Path)
	}
}

func TestRepublishSupersedes(t *testing.T) {
	r, _ := newSignedRepo(t)

	ingest(t, r, "nginx", "1.24.0-1", "amd64", "stable", "main")
	require.NoError(t, r.Publish(context.Background(), "stable"))

	ingest(t, r, "nginx", "1.24.0-2", "amd64", "stable", "main")
	require.NoError(t, r.Publish(context.Background(), "stable"))
	require.NoError(t, r.Verify("stable"))

	idx, err := r.ComponentIndex("stable", "main", "amd64")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(idx), "Package: nginx\n"))
	assert.Contains(t, string(idx), "Version: 1.24.0-2\n")
	assert.NotContains(t, string(idx), "Version: 1.24.0-1\n")

	// the predecessor generation is retained for in-flight readers
	assert.Len(t, generationDirs(t, r, "stable"), 2)
}

func TestPublishRetainsOnePriorGeneration(t *testing.T) {
	r, _ := newSignedRepo(t)
	ingest(t, r, "curl", "7.88.1-1", "amd64", "stable", "main")

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Publish(context.Background(), "stable"))
	}

	dirs := generationDirs(t, r, "stable")
	assert.Len(t, dirs, 2)

	live, err := os.Readlink(r.distDir("stable"))
	require.NoError(t, err)
	assert.Contains(t, dirs, live)
}

func TestRepublishUnchangedRecordsIsStable(t *testing.T) {
	r, _ := newSignedRepo(t)
	ingest(t, r, "curl", "7.88.1-1", "amd64", "stable", "main")

	require.NoError(t, r.Publish(context.Background(), "stable"))
	first, err := r.ComponentIndex("stable", "main", "amd64")
	require.NoError(t, err)

	require.NoError(t, r.Publish(context.Background(), "stable"))
	second, err := r.ComponentIndex("stable", "main", "amd64")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.NoError(t, r.Verify("stable"))
}

func TestPublishFailureKeepsPreviousState(t *testing.T) {
	r, _ := newSignedRepo(t)

	ingest(t, r, "nginx", "1.24.0-1", "amd64", "stable", "main")
	require.NoError(t, r.Publish(context.Background(), "stable"))

	before, err := r.Manifest("stable")
	require.NoError(t, err)
	sigBefore, err := os.ReadFile(filepath.Join(r.distDir("stable"), "Release.gpg"))
	require.NoError(t, err)

	ingest(t, r, "nginx", "1.24.0-2", "amd64", "stable", "main")
	r.signer = brokenSigner{err: signer.ErrKeyExpired}

	err = r.Publish(context.Background(), "stable")
	assert.True(t, models.IsKind(err, models.ErrSigning))
	assert.ErrorIs(t, err, signer.ErrKeyExpired)

	// the previously published state is fully intact
	after, err := r.Manifest("stable")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	sigAfter, err := os.ReadFile(filepath.Join(r.distDir("stable"), "Release.gpg"))
	require.NoError(t, err)
	assert.Equal(t, sigBefore, sigAfter)
	require.NoError(t, r.Verify("stable"))

	// the aborted staging directory was cleaned up
	assert.Len(t, generationDirs(t, r, "stable"), 1)
}

func TestPublishConcurrencyRefused(t *testing.T) {
	r, _ := newSignedRepo(t)

	lock := r.lockFor("stable")
	lock.Lock()
	defer lock.Unlock()

	err := r.Publish(context.Background(), "stable")
	assert.True(t, models.IsKind(err, models.ErrConcurrency))
}

func TestPublishDistributionsIndependent(t *testing.T) {
	r, _ := newSignedRepo(t)
	ingest(t, r, "curl", "7.88.1-1", "amd64", "testing", "main")

	// a held stable lock must not block testing
	lock := r.lockFor("stable")
	lock.Lock()
	defer lock.Unlock()

	require.NoError(t, r.Publish(context.Background(), "testing"))
	require.NoError(t, r.Verify("testing"))
}

func TestSignWithTimeoutExpires(t *testing.T) {
	r, _ := newSignedRepo(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	slow := func(data []byte) ([]byte, error) {
		time.Sleep(100 * time.Millisecond)
		return []byte("sig"), nil
	}
	_, err := r.signWithTimeout(ctx, []byte("data"), slow)
	assert.ErrorIs(t, err, signer.ErrBackendUnavailable)
}

func TestSignArchiveVerifies(t *testing.T) {
	r, entity := newSignedRepo(t)

	data := []byte("archive bytes")
	sig, err := r.SignArchive(data)
	require.NoError(t, err)
	assert.Contains(t, string(sig), "BEGIN PGP SIGNATURE")

	_, err = openpgp.CheckArmoredDetachedSignature(openpgp.EntityList{entity},
		bytes.NewReader(data), bytes.NewReader(sig), nil)
	assert.NoError(t, err)
}

func TestSignArchiveWithoutSigner(t *testing.T) {
	r := newTestRepo(t, testConfig(t), nil)

	_, err := r.SignArchive([]byte("archive bytes"))
	assert.True(t, models.IsKind(err, models.ErrSigning))
	assert.ErrorIs(t, err, signer.ErrKeyNotFound)
}

func TestVerifyDetectsTampering(t *testing.T) {
	r, _ := newSignedRepo(t)
	ingest(t, r, "curl", "7.88.1-1", "amd64", "stable", "main")
	require.NoError(t, r.Publish(context.Background(), "stable"))

	target := filepath.Join(r.distDir("stable"), "main", "binary-amd64", "Packages")
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(target, append(data, '\n'), 0644))

	err = r.Verify("stable")
	assert.True(t, models.IsKind(err, models.ErrConsistency))
}

func TestVerifyWithoutPublish(t *testing.T) {
	r, _ := newSignedRepo(t)

	err := r.Verify("stable")
	assert.True(t, models.IsKind(err, models.ErrConsistency))
}

// generationDirs lists the staged generation directories of a
// distribution under dists/.
func generationDirs(t *testing.T, r *Repository, distribution string) []string {
	t.Helper()

	entries, err := os.ReadDir(filepath.Join(r.cfg.RootDir, "dists"))
	require.NoError(t, err)

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), ".gen-"+distribution+"-") {
			dirs = append(dirs, entry.Name())
		}
	}
	return dirs
}
