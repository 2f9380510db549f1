// Package parser parses collection spec strings of the form
//
//	/root/dir/**/regexp
//
// where "**" asks for subdirectories to be scanned and the trailing regular
// expression filters file base names. A "#...#" section in the filter marks a
// date layout embedded in file names; it matches any run of characters.
package parser

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Spec is a parsed collection spec.
type Spec struct {
	RootDir     string
	WantSubdirs bool
	Filter      *regexp.Regexp
	DateFormat  string
}

// Parse splits a spec string into its root directory, subdirectory flag and
// file filter.
func Parse(spec string) (*Spec, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("parser: empty collection spec")
	}
	spec = filepath.ToSlash(spec)

	out := &Spec{}
	var filter string
	if i := strings.Index(spec, "/**/"); i >= 0 {
		out.RootDir = spec[:i]
		out.WantSubdirs = true
		filter = spec[i+len("/**/"):]
	} else if strings.HasSuffix(spec, "/**") {
		out.RootDir = strings.TrimSuffix(spec, "/**")
		out.WantSubdirs = true
	} else {
		i := strings.LastIndex(spec, "/")
		if i < 0 {
			return nil, fmt.Errorf("parser: spec %q has no directory", spec)
		}
		out.RootDir = spec[:i]
		filter = spec[i+1:]
	}
	if out.RootDir == "" {
		out.RootDir = "/"
	}
	out.RootDir = filepath.FromSlash(out.RootDir)

	filter, out.DateFormat = extractDateFormat(filter)
	if filter != "" {
		re, err := regexp.Compile(filter)
		if err != nil {
			return nil, fmt.Errorf("parser: spec filter %q: %w", filter, err)
		}
		out.Filter = re
	}
	return out, nil
}

// Match reports whether the base name of path passes the filter.
func (s *Spec) Match(path string) bool {
	if s.Filter == nil {
		return true
	}
	return s.Filter.MatchString(filepath.Base(path))
}

func (s *Spec) String() string {
	var b strings.Builder
	b.WriteString(filepath.ToSlash(s.RootDir))
	if s.WantSubdirs {
		b.WriteString("/**")
	}
	if s.Filter != nil {
		b.WriteString("/")
		b.WriteString(s.Filter.String())
	}
	return b.String()
}

// extractDateFormat replaces a "#layout#" section with a wildcard.
func extractDateFormat(filter string) (string, string) {
	start := strings.Index(filter, "#")
	if start < 0 {
		return filter, ""
	}
	end := strings.Index(filter[start+1:], "#")
	if end < 0 {
		return filter, ""
	}
	end += start + 1
	return filter[:start] + ".*" + filter[end+1:], filter[start+1 : end]
}
