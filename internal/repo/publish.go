package repo

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/aptforge/aptforge/internal/index"
	"github.com/aptforge/aptforge/internal/models"
	"github.com/aptforge/aptforge/internal/release"
	"github.com/aptforge/aptforge/internal/signer"
	"github.com/aptforge/aptforge/internal/utils"
)

// Publish rebuilds and publishes one distribution: indices are built,
// the manifest composed and signed, and the complete artifact set swapped
// into the served path in a single link rename. A failure at any
// stage leaves the previously published state untouched. Only one publish
// per distribution runs at a time; publishes of different distributions
// are independent.
func (r *Repository) Publish(ctx context.Context, distribution string) error {
	if !r.cfg.HasDistribution(distribution) {
		return models.NewRepoError(models.ErrValidation, models.StageBuilding,
			fmt.Errorf("unknown distribution %q", distribution))
	}

	lock := r.lockFor(distribution)
	if !lock.TryLock() {
		return models.NewRepoError(models.ErrConcurrency, models.StageBuilding,
			fmt.Errorf("publish already in progress for %s", distribution))
	}
	defer lock.Unlock()

	if r.signer == nil {
		return models.NewRepoError(models.ErrSigning, models.StageSigning,
			fmt.Errorf("no signer configured; refusing to publish unsigned state"))
	}

	logrus.Infof("Publishing distribution %s", distribution)

	distsRoot := filepath.Join(r.cfg.RootDir, "dists")
	if err := utils.EnsureDir(distsRoot); err != nil {
		return models.NewRepoError(models.ErrConsistency, models.StageBuilding, err)
	}

	// Each publish stages a fresh generation directory next to the
	// served symlink; the swap at the end is a single link rename.
	staging, err := os.MkdirTemp(distsRoot, ".gen-"+distribution+"-")
	if err != nil {
		return models.NewRepoError(models.ErrConsistency, models.StageBuilding, err)
	}
	if err := os.Chmod(staging, 0755); err != nil {
		return models.NewRepoError(models.ErrConsistency, models.StageBuilding, err)
	}
	swapped := false
	defer func() {
		if !swapped {
			os.RemoveAll(staging)
		}
	}()

	// Building
	declared, err := r.buildIndices(staging, distribution)
	if err != nil {
		return models.NewRepoError(models.ErrConsistency, models.StageBuilding, err)
	}

	// Composing
	manifest, err := release.Compose(staging, r.releaseInfo(distribution), declared)
	if err != nil {
		return models.NewRepoError(models.ErrConsistency, models.StageComposing, err)
	}

	// Signing. The manifest bytes are signed verbatim.
	detached, err := r.signWithTimeout(ctx, manifest, r.signer.SignDetached)
	if err != nil {
		return models.NewRepoError(models.ErrSigning, models.StageSigning, err)
	}
	inline, err := r.signWithTimeout(ctx, manifest, r.signer.SignCleartext)
	if err != nil {
		return models.NewRepoError(models.ErrSigning, models.StageSigning, err)
	}
	publicKey, err := r.signer.PublicKey()
	if err != nil {
		return models.NewRepoError(models.ErrSigning, models.StageSigning, err)
	}

	// Manifest and both signature artifacts land in staging together;
	// they become visible only through the swap below.
	if err := utils.WriteFile(filepath.Join(staging, "Release"), manifest, 0644); err != nil {
		return models.NewRepoError(models.ErrSigning, models.StageSigning, err)
	}
	if err := utils.WriteFile(filepath.Join(staging, "Release.gpg"), detached, 0644); err != nil {
		return models.NewRepoError(models.ErrSigning, models.StageSigning, err)
	}
	if err := utils.WriteFile(filepath.Join(staging, "InRelease"), inline, 0644); err != nil {
		return models.NewRepoError(models.ErrSigning, models.StageSigning, err)
	}

	// Last cancellation point; the swap itself is not interruptible.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish of %s aborted: %w", distribution, err)
	}

	// Swapping
	previous, err := utils.SwapSymlink(filepath.Base(staging), r.distDir(distribution))
	if err != nil {
		return models.NewRepoError(models.ErrConsistency, models.StageSwapping, err)
	}
	swapped = true
	r.pruneGenerations(distsRoot, distribution, filepath.Base(staging), previous)

	// The public key blob is idempotent and lives outside the swapped
	// tree. The distribution is published at this point, so a failed key
	// write is reported but does not fail the publish.
	if err := utils.WriteFileAtomic(filepath.Join(r.cfg.RootDir, "key.gpg"), publicKey, 0644); err != nil {
		logrus.Warnf("Published %s but could not write public key blob: %v", distribution, err)
	}

	logrus.Infof("Published distribution %s (%d index files)", distribution, len(declared))
	return nil
}

// buildIndices renders every (component, architecture) index plus its
// compressed variants into the staging directory and returns the declared
// file list for the manifest.
func (r *Repository) buildIndices(staging, distribution string) ([]string, error) {
	r.mu.Lock()
	indices := make([]*index.ComponentIndex, 0, len(r.cfg.Components)*len(r.cfg.Architectures))
	for _, component := range r.cfg.Components {
		for _, arch := range r.cfg.Architectures {
			records := r.activeRecordsLocked(distribution, component, arch)
			indices = append(indices, index.Build(distribution, component, arch, records))
		}
	}
	r.mu.Unlock()

	var declared []string
	for _, ci := range indices {
		data := ci.Render()

		rel := ci.Path()
		if err := utils.WriteFile(filepath.Join(staging, filepath.FromSlash(rel)), data, 0644); err != nil {
			return nil, err
		}
		declared = append(declared, rel)

		gz, err := utils.GzipCompress(data)
		if err != nil {
			return nil, err
		}
		if err := utils.WriteFile(filepath.Join(staging, filepath.FromSlash(rel)+".gz"), gz, 0644); err != nil {
			return nil, err
		}
		declared = append(declared, rel+".gz")

		xzData, err := utils.XzCompress(data)
		if err != nil {
			return nil, err
		}
		if err := utils.WriteFile(filepath.Join(staging, filepath.FromSlash(rel)+".xz"), xzData, 0644); err != nil {
			return nil, err
		}
		declared = append(declared, rel+".xz")

		logrus.Debugf("Built index %s (%d packages)", rel, len(ci.Records))
	}

	return declared, nil
}

// pruneGenerations removes retired generation directories of one
// distribution, keeping the live one and its immediate predecessor so
// readers that resolved the link just before the swap can finish.
func (r *Repository) pruneGenerations(distsRoot, distribution, current, previous string) {
	entries, err := os.ReadDir(distsRoot)
	if err != nil {
		return
	}

	prefix := ".gen-" + distribution + "-"
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		if name == current || name == previous {
			continue
		}
		os.RemoveAll(filepath.Join(distsRoot, name))
	}
}

func (r *Repository) releaseInfo(distribution string) release.Info {
	return release.Info{
		Origin:        r.cfg.Origin,
		Label:         r.cfg.Label,
		Suite:         distribution,
		Codename:      distribution,
		Version:       r.cfg.Version,
		Description:   r.cfg.Description,
		Architectures: r.cfg.Architectures,
		Components:    r.cfg.Components,
	}
}

// signWithTimeout runs one signing call under the configured operation
// timeout. Expiry of the timeout is reported as an unavailable backend;
// retrying is the caller's decision, never done here.
func (r *Repository) signWithTimeout(ctx context.Context, data []byte, sign func([]byte) ([]byte, error)) ([]byte, error) {
	if timeout := r.cfg.SigningTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := sign(data)
		done <- result{data, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", signer.ErrBackendUnavailable, ctx.Err())
	case res := <-done:
		return res.data, res.err
	}
}

// Verify checks the published state of a distribution: every index file
// listed by the manifest must match its recorded size and digests, both
// signature artifacts must exist, and every package listed by an index
// must be fetchable from the pool with a matching SHA256.
func (r *Repository) Verify(distribution string) error {
	manifest, err := r.Manifest(distribution)
	if err != nil {
		return models.NewRepoError(models.ErrConsistency, models.StageComposing,
			fmt.Errorf("no published manifest: %w", err))
	}

	_, entries, err := release.ParseManifest(manifest)
	if err != nil {
		return models.NewRepoError(models.ErrConsistency, models.StageComposing, err)
	}

	distDir := r.distDir(distribution)
	for _, name := range []string{"Release.gpg", "InRelease"} {
		if _, err := os.Stat(filepath.Join(distDir, name)); err != nil {
			return models.NewRepoError(models.ErrConsistency, models.StageSigning,
				fmt.Errorf("signature artifact %s: %w", name, err))
		}
	}

	packages := 0
	for _, entry := range entries {
		sums, err := utils.ChecksumFile(filepath.Join(distDir, filepath.FromSlash(entry.Path)))
		if err != nil {
			return models.NewRepoError(models.ErrConsistency, models.StageComposing,
				fmt.Errorf("listed index %s: %w", entry.Path, err))
		}
		if sums.Size != entry.Size || sums.MD5 != entry.MD5 ||
			sums.SHA1 != entry.SHA1 || sums.SHA256 != entry.SHA256 ||
			sums.SHA512 != entry.SHA512 {
			return models.NewRepoError(models.ErrConsistency, models.StageComposing,
				fmt.Errorf("digest mismatch for %s", entry.Path))
		}

		if path.Base(entry.Path) != "Packages" {
			continue
		}
		count, err := r.verifyIndexedPackages(distDir, entry.Path)
		if err != nil {
			return err
		}
		packages += count
	}

	logrus.Infof("Verified %s: %d index files, %d package(s) consistent",
		distribution, len(entries), packages)
	return nil
}

// verifyIndexedPackages re-parses one published Packages file and checks
// each listed archive against the pool.
func (r *Repository) verifyIndexedPackages(distDir, relPath string) (int, error) {
	f, err := os.Open(filepath.Join(distDir, filepath.FromSlash(relPath)))
	if err != nil {
		return 0, models.NewRepoError(models.ErrConsistency, models.StageComposing, err)
	}
	defer f.Close()

	records, err := index.Parse(f)
	if err != nil {
		return 0, models.NewRepoError(models.ErrConsistency, models.StageComposing, err)
	}

	for _, rec := range records {
		data, err := r.pool.Fetch(rec.Filename)
		if err != nil {
			return 0, models.NewRepoError(models.ErrConsistency, models.StageComposing,
				fmt.Errorf("pool archive %s: %w", rec.Filename, err))
		}
		sums, err := utils.ChecksumReader(bytes.NewReader(data))
		if err != nil {
			return 0, err
		}
		if sums.SHA256 != rec.SHA256Sum {
			return 0, models.NewRepoError(models.ErrConsistency, models.StageComposing,
				fmt.Errorf("pool archive %s does not match index digest", rec.Filename))
		}
	}

	return len(records), nil
}
