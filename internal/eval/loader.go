package eval

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// ErrNoSuites is returned when no file matches the given patterns.
var ErrNoSuites = errors.New("no evaluation suites found")

// LoadSuites expands each pattern (doublestar syntax, so ** is allowed) and
// parses every matching file. Files are loaded once each, in sorted order.
func LoadSuites(patterns []string) ([]Suite, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", pattern, err)
		}
		for _, m := range matches {
			m = filepath.Clean(m)
			if seen[m] {
				continue
			}
			seen[m] = true
			paths = append(paths, m)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSuites, strings.Join(patterns, ", "))
	}
	sort.Strings(paths)

	suites := make([]Suite, 0, len(paths))
	for _, p := range paths {
		s, err := LoadSuite(p)
		if err != nil {
			return nil, err
		}
		suites = append(suites, *s)
	}
	return suites, nil
}

// LoadSuite parses a single suite file.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite: %w", err)
	}

	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing suite %s: %w", path, err)
	}
	s.Path = path
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("suite %s: %w", path, err)
	}
	return &s, nil
}

func (s *Suite) validate() error {
	if len(s.Cases) == 0 {
		return errors.New("no cases")
	}
	for i := range s.Cases {
		c := &s.Cases[i]
		if c.Name == "" {
			c.Name = fmt.Sprintf("case %d", i+1)
		}
		switch c.ExpectError {
		case "":
			if strings.TrimSpace(c.Message) == "" {
				return fmt.Errorf("%s: message is required", c.Name)
			}
		case ErrorInvalidInput, ErrorUpstreamUnavailable:
		default:
			return fmt.Errorf("%s: unknown expect_error %q", c.Name, c.ExpectError)
		}
	}
	return nil
}
