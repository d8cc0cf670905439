package index

import (
	"bytes"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/aptforge/aptforge/internal/deb"
	"github.com/aptforge/aptforge/internal/models"
)

// Field order in rendered package paragraphs, following apt's canonical
// tagfile ordering. Fields not listed here are emitted alphabetically
// before Description.
var fieldOrder = []string{
	"Package",
	"Priority",
	"Section",
	"Installed-Size",
	"Maintainer",
	"Architecture",
	"Version",
	"Depends",
	"Homepage",
	"Filename",
	"Size",
	"MD5sum",
	"SHA1",
	"SHA256",
	"SHA512",
}

// ComponentIndex is the record set of one (distribution, component,
// architecture) triple. Its rendered bytes are a pure function of its
// records: identical record sets render identically regardless of the
// order they were supplied in.
type ComponentIndex struct {
	Distribution string
	Component    string
	Architecture string
	Records      []models.PackageRecord
}

// Build creates a ComponentIndex from an already-deduplicated record set.
// Records are sorted by name, then Debian version order, so insertion
// order never influences the output. An empty record set is valid and
// renders an empty index.
func Build(distribution, component, architecture string, records []models.PackageRecord) *ComponentIndex {
	sorted := make([]models.PackageRecord, len(records))
	copy(sorted, records)

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		if r := deb.CompareVersions(sorted[i].Version, sorted[j].Version); r != 0 {
			return r < 0
		}
		return sorted[i].Architecture < sorted[j].Architecture
	})

	return &ComponentIndex{
		Distribution: distribution,
		Component:    component,
		Architecture: architecture,
		Records:      sorted,
	}
}

// Path returns the index file location relative to the distribution root.
func (ci *ComponentIndex) Path() string {
	return path.Join(ci.Component, "binary-"+ci.Architecture, "Packages")
}

// Render serializes the index into the Packages file format.
func (ci *ComponentIndex) Render() []byte {
	var buf bytes.Buffer

	for _, rec := range ci.Records {
		fields := paragraphFields(&rec)

		emitted := make(map[string]bool, len(fields))
		for _, key := range fieldOrder {
			if value, ok := fields[key]; ok {
				writeField(&buf, key, value)
				emitted[key] = true
			}
		}

		extra := make([]string, 0, len(fields))
		for key := range fields {
			if !emitted[key] && key != "Description" {
				extra = append(extra, key)
			}
		}
		sort.Strings(extra)
		for _, key := range extra {
			writeField(&buf, key, fields[key])
		}

		writeField(&buf, "Description", rec.Description)
		buf.WriteString("\n")
	}

	return buf.Bytes()
}

// paragraphFields flattens a record into control fields, mirroring the
// inspector's mapping plus the Filename and checksum fields.
func paragraphFields(rec *models.PackageRecord) map[string]string {
	fields := map[string]string{
		"Package":      rec.Name,
		"Version":      rec.Version,
		"Architecture": rec.Architecture,
		"Maintainer":   rec.Maintainer,
		"Filename":     rec.Filename,
		"Size":         fmt.Sprintf("%d", rec.Size),
		"MD5sum":       rec.MD5Sum,
		"SHA1":         rec.SHA1Sum,
		"SHA256":       rec.SHA256Sum,
		"SHA512":       rec.SHA512Sum,
		"Description":  rec.Description,
	}

	if rec.Section != "" {
		fields["Section"] = rec.Section
	}
	if rec.Priority != "" {
		fields["Priority"] = rec.Priority
	}
	if rec.Homepage != "" {
		fields["Homepage"] = rec.Homepage
	}
	if rec.InstalledSize != "" {
		fields["Installed-Size"] = rec.InstalledSize
	}
	if len(rec.Depends) > 0 {
		fields["Depends"] = strings.Join(rec.Depends, ", ")
	}
	for key, value := range rec.Extra {
		fields[key] = value
	}

	return fields
}

// writeField emits one field, folding multiline values into the
// continuation-line format control paragraphs require. A bare line would
// otherwise be mis-parsed as the start of a new field.
func writeField(buf *bytes.Buffer, key, value string) {
	lines := strings.Split(value, "\n")
	fmt.Fprintf(buf, "%s: %s\n", key, lines[0])
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			buf.WriteString(" .\n")
			continue
		}
		fmt.Fprintf(buf, " %s\n", line)
	}
}
