package models

import "fmt"

// PackageRecord holds the metadata of one ingested .deb archive.
// It is created by the inspector and never mutated afterwards; adding a
// newer version of the same (name, architecture) creates a new record.
type PackageRecord struct {
	// Control metadata
	Name          string            `json:"name"`
	Version       string            `json:"version"`
	Architecture  string            `json:"architecture"`
	Maintainer    string            `json:"maintainer"`
	Description   string            `json:"description"`
	Section       string            `json:"section,omitempty"`
	Priority      string            `json:"priority,omitempty"`
	Homepage      string            `json:"homepage,omitempty"`
	InstalledSize string            `json:"installed_size,omitempty"`
	Depends       []string          `json:"depends,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`

	// Archive information
	Filename  string `json:"filename"` // pool path relative to repository root
	Size      int64  `json:"size"`
	MD5Sum    string `json:"md5sum"`
	SHA1Sum   string `json:"sha1sum"`
	SHA256Sum string `json:"sha256sum"`
	SHA512Sum string `json:"sha512sum"`
}

// Identity returns the unique identifier of a record within a
// (distribution, component) scope.
func (r *PackageRecord) Identity() string {
	return fmt.Sprintf("%s:%s:%s", r.Name, r.Version, r.Architecture)
}

// SlotKey identifies the (name, architecture) slot the record occupies.
// Only one version per slot is listed in an active index.
func (r *PackageRecord) SlotKey() string {
	return fmt.Sprintf("%s:%s", r.Name, r.Architecture)
}
