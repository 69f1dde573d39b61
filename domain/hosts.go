package domain

import (
	"bufio"
	"strings"

	"github.com/pkg/errors"

	"github.com/openrport/devhost/share/files"
)

// NeedsHostsEntry reports whether the system resolver needs a static mapping
// for domain. Names under .localhost resolve to loopback on their own.
func NeedsHostsEntry(domain string) bool {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	return domain != "localhost" && !strings.HasSuffix(domain, ".localhost")
}

// CheckHosts scans a hosts file for a non-commented line mapping domain.
func CheckHosts(filesAPI files.FileAPI, path string, domain string) (bool, error) {
	f, err := filesAPI.Open(path)
	if err != nil {
		return false, errors.Wrapf(err, "failed to open hosts file %s", path)
	}
	defer f.Close()

	domain = strings.ToLower(domain)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		for _, name := range fields[1:] {
			if strings.ToLower(name) == domain {
				return true, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return false, errors.Wrapf(err, "failed to read hosts file %s", path)
	}

	return false, nil
}
