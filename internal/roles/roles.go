// Package roles maps job titles to configured role categories, first by
// keyword rules and then by embedding similarity.
package roles

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Category is one configured role bucket. Order in the configuration file is
// authoritative: the keyword pass checks categories in order and the
// semantic pass breaks ties in favor of the earliest one.
type Category struct {
	Name       string   `mapstructure:"name"`
	Variations []string `mapstructure:"variations"`
	Template   string   `mapstructure:"template"`
}

// Catalog holds the ordered category set, read-only at run time.
type Catalog struct {
	categories []Category
}

// ParseCategories decodes the raw configuration value (a list of maps as
// produced by the config loader) into the ordered category set.
func ParseCategories(raw any) ([]Category, error) {
	var categories []Category
	if err := mapstructure.Decode(raw, &categories); err != nil {
		return nil, fmt.Errorf("decoding role categories: %w", err)
	}

	for i := range categories {
		c := &categories[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return nil, fmt.Errorf("role category %d has no name", i)
		}
		if len(c.Variations) == 0 {
			c.Variations = []string{c.Name}
		}
	}

	return categories, nil
}

func NewCatalog(categories []Category) *Catalog {
	return &Catalog{categories: categories}
}

func (c *Catalog) Categories() []Category {
	return c.categories
}

// Find returns the category with the given name.
func (c *Catalog) Find(name string) (Category, bool) {
	for _, cat := range c.categories {
		if cat.Name == name {
			return cat, true
		}
	}
	return Category{}, false
}

// variation pairs a configured title variation with its owning category,
// preserving configured order for tie-breaking.
type variation struct {
	category  string
	text      string
	normal    string
}

func (c *Catalog) variations() []variation {
	var out []variation
	for _, cat := range c.categories {
		seen := map[string]bool{}
		for _, v := range append([]string{cat.Name}, cat.Variations...) {
			norm := NormalizeTitle(v)
			if norm == "" || seen[norm] {
				continue
			}
			seen[norm] = true
			out = append(out, variation{category: cat.Name, text: v, normal: norm})
		}
	}
	return out
}
