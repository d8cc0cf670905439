package pool

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/aptforge/aptforge/internal/models"
	"github.com/aptforge/aptforge/internal/utils"
)

// Pool stores archive files under the repository root, independent of any
// distribution index. Layout: pool/<component>/<letter>/<name>/<file>.deb
type Pool struct {
	root string
}

// New creates a pool rooted at the repository directory.
func New(root string) *Pool {
	return &Pool{root: root}
}

// Store writes an archive into the pool and returns its path relative to
// the repository root. Storing the same record again is idempotent;
// changed bytes for the same (name, version, arch) replace the stored
// file.
func (p *Pool) Store(record *models.PackageRecord, data []byte, component string) (string, error) {
	filename := fmt.Sprintf("%s_%s_%s.deb", record.Name, record.Version, record.Architecture)
	rel := path.Join("pool", component, shard(record.Name), record.Name, filename)
	full := filepath.Join(p.root, filepath.FromSlash(rel))

	if sums, err := utils.ChecksumFile(full); err == nil && sums.SHA256 == record.SHA256Sum {
		logrus.Debugf("Pool already holds %s, skipping write", rel)
		return rel, nil
	}

	if err := utils.WriteFileAtomic(full, data, 0644); err != nil {
		return "", fmt.Errorf("cannot store %s: %w", rel, err)
	}

	logrus.Debugf("Stored %s (%d bytes)", rel, len(data))
	return rel, nil
}

// Fetch reads an archive back by its repository-relative path.
func (p *Pool) Fetch(relPath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(p.root, filepath.FromSlash(relPath)))
}

// shard returns the pool subdirectory for a package name: its first
// letter, or "0" for names starting with a digit or other character.
func shard(name string) string {
	first := name[0]
	if first >= 'a' && first <= 'z' {
		return string(first)
	}
	return "0"
}
