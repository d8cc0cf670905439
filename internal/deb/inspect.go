package deb

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/mkrautz/goar"
	"github.com/ulikunitz/xz"

	"github.com/aptforge/aptforge/internal/models"
	"github.com/aptforge/aptforge/internal/utils"
)

// Inspector failure modes
var (
	ErrMalformedArchive        = errors.New("malformed archive")
	ErrMissingControlData      = errors.New("missing control data")
	ErrUnsupportedArchitecture = errors.New("unsupported architecture")
)

var debMagic = []byte("!<arch>\n")

// Fields that must be present in every control paragraph
var requiredFields = []string{"Package", "Version", "Architecture", "Maintainer", "Description"}

// Inspector turns raw .deb archive bytes into PackageRecords. It performs
// no storage; the pool handles archive placement separately.
type Inspector struct {
	arches map[string]bool
}

// NewInspector creates an inspector accepting the given architectures.
// "all" is always accepted.
func NewInspector(architectures []string) *Inspector {
	arches := make(map[string]bool, len(architectures)+1)
	for _, a := range architectures {
		arches[a] = true
	}
	arches["all"] = true

	return &Inspector{arches: arches}
}

// Inspect parses archive bytes into a PackageRecord. The record's Filename
// is left empty; pool storage assigns it on ingestion.
func (ins *Inspector) Inspect(data []byte) (*models.PackageRecord, error) {
	if !bytes.HasPrefix(data, debMagic) {
		return nil, fmt.Errorf("%w: not an ar archive", ErrMalformedArchive)
	}

	control, err := extractControl(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	fields, err := ParseControl(bytes.NewReader(control))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingControlData, err)
	}

	for _, field := range requiredFields {
		if strings.TrimSpace(fields[field]) == "" {
			return nil, fmt.Errorf("%w: field %s absent", ErrMissingControlData, field)
		}
	}

	if !ValidVersion(fields["Version"]) {
		return nil, fmt.Errorf("%w: malformed version %q", ErrMissingControlData, fields["Version"])
	}

	arch := fields["Architecture"]
	if !ins.arches[arch] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedArchitecture, arch)
	}

	sums, err := utils.ChecksumReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	record := &models.PackageRecord{
		Name:          fields["Package"],
		Version:       fields["Version"],
		Architecture:  arch,
		Maintainer:    fields["Maintainer"],
		Description:   fields["Description"],
		Section:       fields["Section"],
		Priority:      fields["Priority"],
		Homepage:      fields["Homepage"],
		InstalledSize: fields["Installed-Size"],
		Depends:       SplitDepends(fields["Depends"]),
		Size:          sums.Size,
		MD5Sum:        sums.MD5,
		SHA1Sum:       sums.SHA1,
		SHA256Sum:     sums.SHA256,
		SHA512Sum:     sums.SHA512,
	}

	for key, value := range fields {
		switch key {
		case "Package", "Version", "Architecture", "Maintainer", "Description",
			"Section", "Priority", "Homepage", "Installed-Size", "Depends":
		default:
			if record.Extra == nil {
				record.Extra = make(map[string]string)
			}
			record.Extra[key] = value
		}
	}

	return record, nil
}

// extractControl walks the outer ar container and returns the raw control
// paragraph from the control.tar member.
func extractControl(r io.Reader) ([]byte, error) {
	archive := ar.NewReader(r)
	for {
		header, err := archive.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: control member absent", ErrMissingControlData)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
		}

		name := strings.TrimRight(strings.TrimSpace(header.Name), "/")
		if !strings.HasPrefix(name, "control.tar") {
			continue
		}

		data, err := io.ReadAll(archive)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
		}

		return controlFromTar(data, name)
	}
}

// controlFromTar decompresses the control member based on its extension
// and pulls out the ./control file.
func controlFromTar(data []byte, name string) ([]byte, error) {
	var reader io.Reader = bytes.NewReader(data)

	switch {
	case strings.HasSuffix(name, ".gz"):
		gr, err := gzip.NewReader(reader)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
		}
		defer gr.Close()
		reader = gr
	case strings.HasSuffix(name, ".xz"):
		xr, err := xz.NewReader(reader)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
		}
		reader = xr
	case strings.HasSuffix(name, ".zst"):
		zr, err := zstd.NewReader(reader)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
		}
		defer zr.Close()
		reader = zr
	}

	untar := tar.NewReader(reader)
	for {
		header, err := untar.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
		}

		if header.Name == "./control" || header.Name == "control" {
			return io.ReadAll(untar)
		}
	}

	return nil, fmt.Errorf("%w: control file absent", ErrMissingControlData)
}
