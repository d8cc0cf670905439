package repo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/aptforge/aptforge/internal/models"
	"github.com/aptforge/aptforge/internal/utils"
)

const stateFile = "state.json"

// repoState is the on-disk form of the record set. It holds metadata
// only; archive bytes live in the pool.
type repoState struct {
	Records map[string][]models.PackageRecord `json:"records"` // "dist/comp" -> records
}

// loadState reads state.json from the repository root, tolerating a
// fresh repository without one.
func (r *Repository) loadState() error {
	path := filepath.Join(r.cfg.RootDir, stateFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cannot read repository state: %w", err)
	}

	var state repoState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("cannot parse repository state: %w", err)
	}

	total := 0
	for scope, records := range state.Records {
		r.records[scope] = make(map[string]models.PackageRecord, len(records))
		for _, rec := range records {
			r.records[scope][rec.Identity()] = rec
			total++
		}
	}

	logrus.Debugf("Loaded %d record(s) from %s", total, path)
	return nil
}

// saveStateLocked persists the record set with a write-then-rename so a
// crash never leaves a truncated state file. Caller holds r.mu.
func (r *Repository) saveStateLocked() error {
	state := repoState{Records: make(map[string][]models.PackageRecord, len(r.records))}
	for scope, byIdentity := range r.records {
		records := make([]models.PackageRecord, 0, len(byIdentity))
		for _, rec := range byIdentity {
			records = append(records, rec)
		}
		state.Records[scope] = records
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	return utils.WriteFileAtomic(filepath.Join(r.cfg.RootDir, stateFile), data, 0644)
}
