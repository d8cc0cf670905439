package scanner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Debian packages are ar archives whose first member is debian-binary
var debMagic = []byte("!<arch>\ndebian")

// ScannedArchive is a candidate .deb file found during a scan
type ScannedArchive struct {
	Path string
	Size int64
}

// Scan recursively walks dir and returns every file that looks like a
// Debian package, by magic bytes or extension.
func Scan(ctx context.Context, dir string) ([]ScannedArchive, error) {
	var archives []ScannedArchive

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() {
			return nil
		}

		isDeb, err := IsDebArchive(path)
		if err != nil {
			logrus.Warnf("Cannot probe %s: %v", path, err)
			return nil
		}
		if !isDeb {
			return nil
		}

		logrus.Debugf("Found package candidate: %s", path)
		archives = append(archives, ScannedArchive{Path: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	logrus.Infof("Found %d package file(s) in %s", len(archives), dir)
	return archives, nil
}

// IsDebArchive probes a file's leading bytes for the Debian package magic.
func IsDebArchive(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	header := make([]byte, len(debMagic))
	n, err := f.Read(header)
	if err != nil && n == 0 {
		return false, err
	}
	header = header[:n]

	if bytes.HasPrefix(header, debMagic) {
		return true, nil
	}
	return filepath.Ext(path) == ".deb" && bytes.HasPrefix(header, []byte("!<arch>")), nil
}
