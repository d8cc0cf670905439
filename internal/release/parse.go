package release

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// ManifestEntry is one index file listed by a Release manifest, with the
// digests merged from all checksum sections.
type ManifestEntry struct {
	Path   string
	Size   int64
	MD5    string
	SHA1   string
	SHA256 string
	SHA512 string
}

var checksumSections = map[string]bool{
	"MD5Sum": true,
	"SHA1":   true,
	"SHA256": true,
	"SHA512": true,
}

// ParseManifest reads a Release document into its header fields and file
// entries, the way an apt-style consumer would.
func ParseManifest(data []byte) (map[string]string, []ManifestEntry, error) {
	fields := make(map[string]string)
	byPath := make(map[string]*ManifestEntry)
	var order []string

	section := ""
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, " ") {
			if section == "" {
				continue
			}
			parts := strings.Fields(line)
			if len(parts) != 3 {
				return nil, nil, fmt.Errorf("malformed checksum line %q", line)
			}
			size, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("malformed size in %q: %w", line, err)
			}

			entry, ok := byPath[parts[2]]
			if !ok {
				entry = &ManifestEntry{Path: parts[2], Size: size}
				byPath[parts[2]] = entry
				order = append(order, parts[2])
			}
			if entry.Size != size {
				return nil, nil, fmt.Errorf("inconsistent size for %s", parts[2])
			}

			switch section {
			case "MD5Sum":
				entry.MD5 = parts[0]
			case "SHA1":
				entry.SHA1 = parts[0]
			case "SHA256":
				entry.SHA256 = parts[0]
			case "SHA512":
				entry.SHA512 = parts[0]
			}
			continue
		}

		kv := strings.SplitN(line, ":", 2)
		key := strings.TrimSpace(kv[0])
		if checksumSections[key] {
			section = key
			continue
		}
		section = ""
		if len(kv) == 2 {
			fields[key] = strings.TrimSpace(kv[1])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	entries := make([]ManifestEntry, 0, len(order))
	for _, path := range order {
		entries = append(entries, *byPath[path])
	}
	return fields, entries, nil
}
