package resolve

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/treasurylens/treasury-cli/internal/model"
)

//go:embed concepts.yaml
var defaultCatalogYAML []byte

// Catalog maps semantic field keys to their concept alias series.
type Catalog struct {
	Concepts []model.ConceptSeries `yaml:"concepts"`
}

// Series returns the alias series for a field, or false if the catalog does
// not know the field.
func (c *Catalog) Series(field string) (model.ConceptSeries, bool) {
	for _, s := range c.Concepts {
		if s.Field == field {
			return s, true
		}
	}
	return model.ConceptSeries{}, false
}

// Aliases returns the union of all alias names in the catalog, used by the
// EDGAR client to bound which concepts it extracts.
func (c *Catalog) Aliases() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range c.Concepts {
		for _, a := range s.Aliases {
			if seen[a] {
				continue
			}
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

// LoadCatalog parses a concept catalog from YAML.
func LoadCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "resolve: parse concept catalog")
	}
	return &c, nil
}

// DefaultCatalog returns the embedded concept catalog.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(defaultCatalogYAML)
	if err != nil {
		// The embedded catalog is validated by tests; a parse failure here is
		// a build defect.
		panic(err)
	}
	return c
}
