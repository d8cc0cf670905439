// Package testutil builds minimal but well-formed .deb archives in memory
// for tests.
package testutil

import (
	"archive/tar"
	"bytes"
	"fmt"

	"github.com/klauspost/compress/gzip"
	"github.com/mkrautz/goar"
)

// ControlFields is a convenience control paragraph with all mandatory
// fields filled in; tests override what they need.
func ControlFields(name, version, arch string) map[string]string {
	return map[string]string{
		"Package":      name,
		"Version":      version,
		"Architecture": arch,
		"Maintainer":   "Test Maintainer <test@example.com>",
		"Description":  "Test package\nA longer description line.",
	}
}

// BuildDeb assembles a .deb archive (ar container with debian-binary,
// control.tar.gz and data.tar.gz members) from a control paragraph.
func BuildDeb(fields map[string]string) []byte {
	var control bytes.Buffer
	for _, key := range []string{"Package", "Version", "Architecture", "Maintainer", "Installed-Size", "Depends", "Section", "Priority", "Homepage"} {
		if value, ok := fields[key]; ok {
			fmt.Fprintf(&control, "%s: %s\n", key, value)
		}
	}
	for key, value := range fields {
		switch key {
		case "Package", "Version", "Architecture", "Maintainer", "Installed-Size",
			"Depends", "Section", "Priority", "Homepage", "Description":
		default:
			fmt.Fprintf(&control, "%s: %s\n", key, value)
		}
	}
	if desc, ok := fields["Description"]; ok {
		lines := bytes.Split([]byte(desc), []byte("\n"))
		fmt.Fprintf(&control, "Description: %s\n", lines[0])
		for _, line := range lines[1:] {
			if len(bytes.TrimSpace(line)) == 0 {
				control.WriteString(" .\n")
			} else {
				fmt.Fprintf(&control, " %s\n", line)
			}
		}
	}

	controlTar := gzipBytes(tarBytes("./control", control.Bytes()))
	dataTar := gzipBytes(tarBytes("./usr/share/doc/test", []byte("placeholder\n")))

	var deb bytes.Buffer
	aw := ar.NewWriter(&deb)
	for _, member := range []struct {
		name string
		data []byte
	}{
		{"debian-binary", []byte("2.0\n")},
		{"control.tar.gz", controlTar},
		{"data.tar.gz", dataTar},
	} {
		hdr := &ar.Header{Name: member.name, Mode: 0100644, Size: int64(len(member.data))}
		if err := aw.WriteHeader(hdr); err != nil {
			panic(err)
		}
		if _, err := aw.Write(member.data); err != nil {
			panic(err)
		}
	}
	if err := aw.Close(); err != nil {
		panic(err)
	}

	return deb.Bytes()
}

func tarBytes(name string, content []byte) []byte {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	hdr := &tar.Header{
		Name: name,
		Mode: 0644,
		Size: int64(len(content)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		panic(err)
	}
	if _, err := tw.Write(content); err != nil {
		panic(err)
	}
	if err := tw.Close(); err != nil {
		panic(err)
	}

	return buf.Bytes()
}

func gzipBytes(data []byte) []byte {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		panic(err)
	}
	if err := gw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
