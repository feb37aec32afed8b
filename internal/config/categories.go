package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"haushaltsbuch/internal/core"
)

type categoriesFile struct {
	Categories []string `yaml:"categories"`
}

// LoadCategories reads a YAML document of the form
//
//	categories:
//	  - Lebensmittel
//	  - Miete
//
// Blank and duplicate names are dropped; the order of the file is kept.
func LoadCategories(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories file '%s': %w", path, err)
	}
	var doc categoriesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse categories file '%s': %w", path, err)
	}

	out := make([]string, 0, len(doc.Categories))
	for _, c := range doc.Categories {
		c = strings.TrimSpace(c)
		if c == "" || slices.Contains(out, c) {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("categories file '%s' lists no categories", path)
	}
	return out, nil
}

func defaultCategories() []string {
	return slices.Clone(core.DefaultCategories)
}
