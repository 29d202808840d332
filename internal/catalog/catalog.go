// Package catalog holds the fixed product tables: which store products are
// credit packs and how many looks each grants, and which products back each
// offer. The built-in table can be replaced by a YAML file.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog maps store products to credits and offers to products. It is
// immutable after construction and safe for concurrent use.
type Catalog struct {
	credits map[string]int
	offers  map[string][]string
}

// File is the YAML layout accepted by Load.
//
//	credit_packs:
//	  looks_30: 30
//	offers:
//	  pack: [looks_10, looks_30]
type File struct {
	CreditPacks map[string]int      `yaml:"credit_packs"`
	Offers      map[string][]string `yaml:"offers"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, _ := New(File{
		CreditPacks: map[string]int{
			"looks_5_intro": 5,
			"looks_10":      10,
			"looks_30":      30,
			"looks_100":     100,
		},
		Offers: map[string][]string{
			"entry":        {"looks_5_intro"},
			"pack":         {"looks_10", "looks_30"},
			"subscription": {"unlimited_monthly", "unlimited_annual"},
		},
	})
	return c
}

// New validates f and builds a Catalog from it.
func New(f File) (*Catalog, error) {
	if len(f.CreditPacks) == 0 {
		return nil, errors.New("catalog: at least one credit pack is required")
	}
	c := &Catalog{
		credits: make(map[string]int, len(f.CreditPacks)),
		offers:  make(map[string][]string, len(f.Offers)),
	}
	for id, n := range f.CreditPacks {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, errors.New("catalog: empty product id")
		}
		if n <= 0 {
			return nil, fmt.Errorf("catalog: credit pack %q must grant a positive quantity", id)
		}
		c.credits[id] = n
	}
	for offer, products := range f.Offers {
		c.offers[offer] = append([]string(nil), products...)
	}
	return c, nil
}

// Load reads a catalog from a YAML file. An empty path yields Default().
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return New(f)
}

// Credits returns the looks granted by productID and whether it is a known
// credit pack.
func (c *Catalog) Credits(productID string) (int, bool) {
	n, ok := c.credits[productID]
	return n, ok
}

// IsCreditPack reports whether productID is a known credit pack.
func (c *Catalog) IsCreditPack(productID string) bool {
	_, ok := c.credits[productID]
	return ok
}

// Products returns a copy of the products backing offerKey.
func (c *Catalog) Products(offerKey string) []string {
	return append([]string(nil), c.offers[offerKey]...)
}
