// Package domain derives the stable hostname a project is served under.
package domain

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/openrport/devhost/share/files"
)

type NameSource string

const (
	NameSourceFolder NameSource = "folder"
	NameSourcePkg    NameSource = "pkg"

	DefaultTLD      = "localhost"
	DefaultManifest = "package.json"
)

var ErrNoProjectName = errors.New("cannot derive a project name, use --domain")

var nonSlugChars = regexp.MustCompile(`[^a-z0-9-]+`)

// Options are the inputs the domain is computed from.
type Options struct {
	// Domain, when set, is used as is.
	Domain     string
	TLD        string
	NameSource NameSource
	// ProjectDir is the absolute project directory; its base name is the
	// folder slug source.
	ProjectDir string
	// Manifest is the manifest file name, relative to ProjectDir unless absolute.
	Manifest string
}

// Slug lowercases s and collapses every run of characters outside
// [a-z0-9-] into a single dash, trimming dashes at both ends.
func Slug(s string) string {
	s = strings.ToLower(s)
	s = nonSlugChars.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Compute returns the hostname for the project described by opts.
// It never fails: an unusable manifest falls back to the folder name. When
// neither yields a slug the result is empty, see Resolve.
func Compute(opts Options, filesAPI files.FileAPI) string {
	d, _ := Resolve(opts, filesAPI)
	return d
}

// Resolve is Compute returning ErrNoProjectName when no slug can be
// derived, e.g. for "/" or a folder name without ascii letters or digits.
func Resolve(opts Options, filesAPI files.FileAPI) (string, error) {
	if opts.Domain != "" {
		return opts.Domain, nil
	}

	tld := strings.Trim(opts.TLD, ".")
	if tld == "" {
		tld = DefaultTLD
	}

	slug := ""
	if opts.NameSource == NameSourcePkg {
		if name, ok := ManifestName(filesAPI, manifestPath(opts)); ok {
			slug = Slug(name)
		}
	}
	if slug == "" {
		slug = Slug(filepath.Base(opts.ProjectDir))
	}
	if slug == "" {
		return "", ErrNoProjectName
	}

	return slug + "." + tld, nil
}

func manifestPath(opts Options) string {
	manifest := opts.Manifest
	if manifest == "" {
		manifest = DefaultManifest
	}
	if filepath.IsAbs(manifest) {
		return manifest
	}
	return filepath.Join(opts.ProjectDir, manifest)
}
