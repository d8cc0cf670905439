package index

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/aptforge/aptforge/internal/deb"
	"github.com/aptforge/aptforge/internal/models"
)

// Parse reads a Packages document back into records, the way an apt-style
// consumer would. Used by repository verification and round-trip tests.
func Parse(r io.Reader) ([]models.PackageRecord, error) {
	var records []models.PackageRecord

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var paragraph bytes.Buffer
	flush := func() error {
		if strings.TrimSpace(paragraph.String()) == "" {
			paragraph.Reset()
			return nil
		}
		fields, err := deb.ParseControl(bytes.NewReader(paragraph.Bytes()))
		if err != nil {
			return err
		}
		records = append(records, recordFromFields(fields))
		paragraph.Reset()
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		paragraph.WriteString(line)
		paragraph.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return records, nil
}

func recordFromFields(fields map[string]string) models.PackageRecord {
	size, _ := strconv.ParseInt(fields["Size"], 10, 64)

	rec := models.PackageRecord{
		Name:          fields["Package"],
		Version:       fields["Version"],
		Architecture:  fields["Architecture"],
		Maintainer:    fields["Maintainer"],
		Description:   fields["Description"],
		Section:       fields["Section"],
		Priority:      fields["Priority"],
		Homepage:      fields["Homepage"],
		InstalledSize: fields["Installed-Size"],
		Depends:       deb.SplitDepends(fields["Depends"]),
		Filename:      fields["Filename"],
		Size:          size,
		MD5Sum:        fields["MD5sum"],
		SHA1Sum:       fields["SHA1"],
		SHA256Sum:     fields["SHA256"],
		SHA512Sum:     fields["SHA512"],
	}

	for key, value := range fields {
		switch key {
		case "Package", "Version", "Architecture", "Maintainer", "Description",
			"Section", "Priority", "Homepage", "Installed-Size", "Depends",
			"Filename", "Size", "MD5sum", "SHA1", "SHA256", "SHA512":
		default:
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[key] = value
		}
	}

	return rec
}
