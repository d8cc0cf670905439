package deb

import (
	"bufio"
	"io"
	"strings"
)

// ParseControl parses a Debian control paragraph (colon-delimited fields,
// continuation lines indented with a space or tab) into a field map.
// Multiline values keep their embedded newlines; continuation lines
// consisting of a single "." mark an empty line, as in Description fields.
func ParseControl(r io.Reader) (map[string]string, error) {
	fields := make(map[string]string)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var currentKey string
	var currentValue strings.Builder

	flush := func() {
		if currentKey != "" {
			fields[currentKey] = currentValue.String()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()

		// continuation line
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			if currentKey == "" {
				continue
			}
			content := strings.TrimRight(line[1:], " \t")
			if content == "." {
				// a lone dot marks an empty line in multiline fields
				content = ""
			}
			currentValue.WriteString("\n")
			currentValue.WriteString(content)
			continue
		}

		// blank line ends the paragraph
		if strings.TrimSpace(line) == "" {
			if len(fields) > 0 || currentKey != "" {
				break
			}
			continue
		}

		flush()

		parts := strings.SplitN(line, ":", 2)
		currentKey = strings.TrimSpace(parts[0])
		currentValue.Reset()
		if len(parts) == 2 {
			currentValue.WriteString(strings.TrimSpace(parts[1]))
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return fields, nil
}

// SplitDepends splits a comma-separated relationship field into its
// individual clauses.
func SplitDepends(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	deps := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			deps = append(deps, p)
		}
	}
	return deps
}
