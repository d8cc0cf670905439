package release

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aptforge/aptforge/internal/utils"
)

// ErrMissingIndexFile means a declared index file was absent at
// composition time. Composition aborts: a partial manifest would be
// signed and trusted downstream.
var ErrMissingIndexFile = errors.New("missing index file")

// Info describes a distribution in its Release manifest.
type Info struct {
	Origin        string
	Label         string
	Suite         string
	Codename      string
	Version       string
	Description   string
	Architectures []string
	Components    []string
}

// FileInfo is one index file entry of a manifest.
type FileInfo struct {
	Path     string
	Checksum *utils.Checksum
}

// Compose builds the Release manifest for a distribution directory,
// hashing every declared index file's current on-disk bytes. The declared
// paths are relative to distDir.
func Compose(distDir string, info Info, declared []string) ([]byte, error) {
	return ComposeAt(distDir, info, declared, time.Now())
}

// ComposeAt is Compose with an explicit generation timestamp.
func ComposeAt(distDir string, info Info, declared []string, now time.Time) ([]byte, error) {
	files, err := collectFileInfos(distDir, declared)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	// Field order is fixed; some consumers parse these sections
	// positionally.
	fmt.Fprintf(&buf, "Origin: %s\n", info.Origin)
	fmt.Fprintf(&buf, "Label: %s\n", info.Label)
	fmt.Fprintf(&buf, "Suite: %s\n", info.Suite)
	fmt.Fprintf(&buf, "Codename: %s\n", info.Codename)
	if info.Version != "" {
		fmt.Fprintf(&buf, "Version: %s\n", info.Version)
	}
	fmt.Fprintf(&buf, "Architectures: %s\n", strings.Join(info.Architectures, " "))
	fmt.Fprintf(&buf, "Components: %s\n", strings.Join(info.Components, " "))
	fmt.Fprintf(&buf, "Date: %s\n", now.UTC().Format(time.RFC1123))
	if info.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", info.Description)
	}

	buf.WriteString("MD5Sum:\n")
	for _, file := range files {
		fmt.Fprintf(&buf, " %s %d %s\n", file.Checksum.MD5, file.Checksum.Size, file.Path)
	}

	buf.WriteString("SHA1:\n")
	for _, file := range files {
		fmt.Fprintf(&buf, " %s %d %s\n", file.Checksum.SHA1, file.Checksum.Size, file.Path)
	}

	buf.WriteString("SHA256:\n")
	for _, file := range files {
		fmt.Fprintf(&buf, " %s %d %s\n", file.Checksum.SHA256, file.Checksum.Size, file.Path)
	}

	buf.WriteString("SHA512:\n")
	for _, file := range files {
		fmt.Fprintf(&buf, " %s %d %s\n", file.Checksum.SHA512, file.Checksum.Size, file.Path)
	}

	return buf.Bytes(), nil
}

// collectFileInfos hashes every declared file, failing on the first one
// that does not exist.
func collectFileInfos(distDir string, declared []string) ([]FileInfo, error) {
	infos := make([]FileInfo, 0, len(declared))

	for _, rel := range declared {
		full := filepath.Join(distDir, filepath.FromSlash(rel))
		if _, err := os.Stat(full); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrMissingIndexFile, rel)
			}
			return nil, err
		}

		sums, err := utils.ChecksumFile(full)
		if err != nil {
			return nil, fmt.Errorf("cannot hash %s: %w", rel, err)
		}

		infos = append(infos, FileInfo{Path: rel, Checksum: sums})
	}

	return infos, nil
}
