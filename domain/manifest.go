package domain

import (
	"strings"

	"github.com/openrport/devhost/share/files"
)

type manifest struct {
	Name interface{} `json:"name"`
}

// ManifestName reads the "name" field of a JSON manifest. ok is false when
// the file is missing, malformed, or has no usable string name.
func ManifestName(filesAPI files.FileAPI, path string) (name string, ok bool) {
	if filesAPI == nil {
		return "", false
	}

	var m manifest
	if err := filesAPI.ReadJSON(path, &m); err != nil {
		return "", false
	}

	name, isString := m.Name.(string)
	if !isString || strings.TrimSpace(name) == "" {
		return "", false
	}
	return name, true
}
