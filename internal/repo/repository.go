package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/aptforge/aptforge/internal/config"
	"github.com/aptforge/aptforge/internal/deb"
	"github.com/aptforge/aptforge/internal/models"
	"github.com/aptforge/aptforge/internal/pool"
	"github.com/aptforge/aptforge/internal/signer"
)

// Repository owns all package records and the publish pipeline. Records
// are scoped per (distribution, component); within a component only the
// newest version per (name, architecture) appears in the active index,
// while older versions stay in the pool until explicitly removed.
type Repository struct {
	cfg       config.Config
	inspector *deb.Inspector
	pool      *pool.Pool
	signer    signer.Signer

	mu      sync.Mutex                               // guards records and state writes
	records map[string]map[string]models.PackageRecord // "dist/comp" -> identity -> record

	lockMu   sync.Mutex
	pubLocks map[string]*sync.Mutex // per-distribution publish locks
}

// Open loads (or initializes) a repository at cfg.RootDir. sig may be nil
// for a repository that is only ingested into; publishing requires it.
func Open(cfg config.Config, sig signer.Signer) (*Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Repository{
		cfg:       cfg,
		inspector: deb.NewInspector(cfg.Architectures),
		pool:      pool.New(cfg.RootDir),
		signer:    sig,
		records:   make(map[string]map[string]models.PackageRecord),
		pubLocks:  make(map[string]*sync.Mutex),
	}

	if err := os.MkdirAll(cfg.RootDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create repository root: %w", err)
	}

	if err := r.loadState(); err != nil {
		return nil, err
	}

	return r, nil
}

// Ingest inspects archive bytes, stores them in the pool and records the
// package for the given (distribution, component). Re-ingesting the same
// (name, version, architecture) replaces the prior record. The record
// becomes visible with the next publish of the distribution.
func (r *Repository) Ingest(ctx context.Context, data []byte, distribution, component string) (*models.PackageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !r.cfg.HasDistribution(distribution) {
		return nil, models.NewRepoError(models.ErrValidation, models.StageIngest,
			fmt.Errorf("unknown distribution %q", distribution))
	}
	if !r.cfg.HasComponent(component) {
		return nil, models.NewRepoError(models.ErrValidation, models.StageIngest,
			fmt.Errorf("unknown component %q", component))
	}

	record, err := r.inspector.Inspect(data)
	if err != nil {
		return nil, models.NewRepoError(models.ErrValidation, models.StageIngest, err)
	}

	relPath, err := r.pool.Store(record, data, component)
	if err != nil {
		return nil, models.NewRepoError(models.ErrConsistency, models.StageIngest, err)
	}
	record.Filename = relPath

	r.mu.Lock()
	defer r.mu.Unlock()

	scope := scopeKey(distribution, component)
	if r.records[scope] == nil {
		r.records[scope] = make(map[string]models.PackageRecord)
	}
	r.records[scope][record.Identity()] = *record

	if err := r.saveStateLocked(); err != nil {
		return nil, models.NewRepoError(models.ErrConsistency, models.StageIngest, err)
	}

	logrus.Infof("Ingested %s %s (%s) into %s/%s",
		record.Name, record.Version, record.Architecture, distribution, component)
	return record, nil
}

// Remove deletes records for (name, architecture) in a component. An
// empty version removes all recorded versions of the slot. Returns the
// number of records removed.
func (r *Repository) Remove(distribution, component, name, version, architecture string) (int, error) {
	if !r.cfg.HasDistribution(distribution) {
		return 0, models.NewRepoError(models.ErrValidation, models.StageIngest,
			fmt.Errorf("unknown distribution %q", distribution))
	}
	if !r.cfg.HasComponent(component) {
		return 0, models.NewRepoError(models.ErrValidation, models.StageIngest,
			fmt.Errorf("unknown component %q", component))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	scope := scopeKey(distribution, component)
	removed := 0
	for identity, rec := range r.records[scope] {
		if rec.Name != name || rec.Architecture != architecture {
			continue
		}
		if version != "" && rec.Version != version {
			continue
		}
		delete(r.records[scope], identity)
		removed++
	}

	if removed > 0 {
		if err := r.saveStateLocked(); err != nil {
			return removed, err
		}
		logrus.Infof("Removed %d record(s) of %s (%s) from %s/%s",
			removed, name, architecture, distribution, component)
	}
	return removed, nil
}

// List returns the active records of a (distribution, component), sorted
// by name then version.
func (r *Repository) List(distribution, component string) []models.PackageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Architecture-independent records are active in every
	// architecture's index; list them once.
	seen := make(map[string]bool)
	var out []models.PackageRecord
	for _, arch := range r.cfg.Architectures {
		for _, rec := range r.activeRecordsLocked(distribution, component, arch) {
			if seen[rec.Identity()] {
				continue
			}
			seen[rec.Identity()] = true
			out = append(out, rec)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		if out[i].Architecture != out[j].Architecture {
			return out[i].Architecture < out[j].Architecture
		}
		return deb.CompareVersions(out[i].Version, out[j].Version) < 0
	})
	return out
}

// Manifest returns the currently published Release bytes of a
// distribution.
func (r *Repository) Manifest(distribution string) ([]byte, error) {
	return os.ReadFile(filepath.Join(r.distDir(distribution), "Release"))
}

// ComponentIndex returns the currently published Packages bytes of a
// (distribution, component, architecture).
func (r *Repository) ComponentIndex(distribution, component, architecture string) ([]byte, error) {
	return os.ReadFile(filepath.Join(r.distDir(distribution), component, "binary-"+architecture, "Packages"))
}

// PublicKey returns the armored public key of the configured signer.
func (r *Repository) PublicKey() ([]byte, error) {
	if r.signer == nil {
		return nil, fmt.Errorf("%w: no signer configured", signer.ErrKeyNotFound)
	}
	return r.signer.PublicKey()
}

// SignArchive produces a detached armored signature over one archive's
// bytes, for distribution alongside the .deb itself.
func (r *Repository) SignArchive(data []byte) ([]byte, error) {
	if r.signer == nil {
		return nil, models.NewRepoError(models.ErrSigning, models.StageSigning,
			fmt.Errorf("%w: no signer configured", signer.ErrKeyNotFound))
	}

	sig, err := r.signer.SignDetached(data)
	if err != nil {
		return nil, models.NewRepoError(models.ErrSigning, models.StageSigning, err)
	}
	return sig, nil
}

// activeRecordsLocked selects the newest version per (name, arch) slot of
// one architecture's index. Architecture-independent packages ("all") are
// listed in every architecture's index. Caller holds r.mu.
func (r *Repository) activeRecordsLocked(distribution, component, architecture string) []models.PackageRecord {
	newest := make(map[string]models.PackageRecord)

	for _, rec := range r.records[scopeKey(distribution, component)] {
		if rec.Architecture != architecture && rec.Architecture != "all" {
			continue
		}
		key := rec.SlotKey()
		if cur, ok := newest[key]; !ok || deb.CompareVersions(rec.Version, cur.Version) > 0 {
			newest[key] = rec
		}
	}

	out := make([]models.PackageRecord, 0, len(newest))
	for _, rec := range newest {
		out = append(out, rec)
	}
	return out
}

func (r *Repository) distDir(distribution string) string {
	return filepath.Join(r.cfg.RootDir, "dists", distribution)
}

// lockFor returns the publish lock of one distribution. Publishes against
// different distributions run independently.
func (r *Repository) lockFor(distribution string) *sync.Mutex {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()

	if _, ok := r.pubLocks[distribution]; !ok {
		r.pubLocks[distribution] = &sync.Mutex{}
	}
	return r.pubLocks[distribution]
}

func scopeKey(distribution, component string) string {
	return distribution + "/" + component
}
