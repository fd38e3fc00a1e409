// Package catalog holds the storefront's static configuration: the fixed fee,
// the style definitions and the policy texts. Everything here is compiled into
// the binary and cannot be changed at runtime.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

const (
	// FeeAmount is the price of one transformation in minor units (paise).
	FeeAmount int64 = 500
	// FeeCurrency is the ISO 4217 code the fee is charged in.
	FeeCurrency = "INR"
)

// StyleID identifies one of the fixed transformation styles.
type StyleID string

const (
	StyleCyberpunk  StyleID = "cyberpunk"
	StyleWatercolor StyleID = "watercolor"
)

// Style is the immutable display metadata and generation instruction of a style.
type Style struct {
	ID          StyleID `yaml:"id" json:"id"`
	Label       string  `yaml:"label" json:"label"`
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description" json:"description"`
	PreviewURL  string  `yaml:"preview_url" json:"preview_url"`
	Instruction string  `yaml:"instruction" json:"-"`
}

// Catalog is the parsed static configuration.
type Catalog struct {
	Studio       string            `yaml:"studio"`
	SupportEmail string            `yaml:"support_email"`
	Styles       []Style           `yaml:"styles"`
	Policies     map[string]string `yaml:"policies"`

	byID map[StyleID]Style
}

//go:embed catalog.yaml
var raw []byte

var defaultCatalog = mustParse(raw)

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	return defaultCatalog
}

// Parse decodes a catalog document and validates its styles.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	c.byID = make(map[StyleID]Style, len(c.Styles))
	for _, s := range c.Styles {
		if s.ID == "" {
			return nil, fmt.Errorf("catalog: style without id")
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate style %q", s.ID)
		}
		s.Instruction = strings.TrimSpace(s.Instruction)
		c.byID[s.ID] = s
	}
	return &c, nil
}

func mustParse(data []byte) *Catalog {
	c, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return c
}

// Style looks up a style by id.
func (c *Catalog) Style(id StyleID) (Style, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// Instruction returns the generation instruction bound to a style.
func (c *Catalog) Instruction(id StyleID) (string, bool) {
	s, ok := c.byID[id]
	if !ok || s.Instruction == "" {
		return "", false
	}
	return s.Instruction, true
}

// Policy returns the named policy text.
func (c *Catalog) Policy(name string) (string, bool) {
	text, ok := c.Policies[strings.ToLower(strings.TrimSpace(name))]
	return strings.TrimSpace(text), ok
}

// PolicyNames lists the available policy names in a stable order.
func (c *Catalog) PolicyNames() []string {
	names := make([]string, 0, len(c.Policies))
	for name := range c.Policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DisplayFee renders the fee for people, e.g. "₹ 5.00".
func DisplayFee() string {
	unit := currency.MustParseISO(FeeCurrency)
	p := message.NewPrinter(language.English)
	return p.Sprint(currency.Symbol(unit.Amount(float64(FeeAmount) / 100)))
}
