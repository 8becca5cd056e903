package plan

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Page is one page descriptor of the manifest, its name is both the entry chunk
// and the template/output file name
type Page struct {
	Name  string `yaml:"name" json:"name"`
	Title string `yaml:"title" json:"title"`
}

var pageNameRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// LoadPages reads the YAML page manifest
func LoadPages(path string) ([]Page, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePages(f)
}

func ParsePages(data []byte) ([]Page, error) {
	var pages []Page
	if err := yaml.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPages, err)
	}

	seen := make(map[string]struct{}, len(pages))
	for i, p := range pages {
		if !pageNameRegexp.MatchString(p.Name) {
			return nil, fmt.Errorf("%w: page %d has invalid name %q", ErrInvalidPages, i, p.Name)
		}
		if p.Name == "index" {
			return nil, fmt.Errorf("%w: index is reserved for the index page", ErrInvalidPages)
		}
		if _, ok := seen[p.Name]; ok {
			return nil, fmt.Errorf("%w: page %q declared twice", ErrInvalidPages, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return pages, nil
}
