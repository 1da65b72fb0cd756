package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed selectors.yaml
var defaultSelectors []byte

// Selectors is the versioned catalog of every markup-dependent candidate list.
// Lists are ordered; the first candidate that matches wins.
type Selectors struct {
	Version    int                 `yaml:"version"`
	Product    ProductSelectors    `yaml:"product"`
	Reviews    ReviewSelectors     `yaml:"reviews"`
	ReviewPage ReviewPageSelectors `yaml:"review_page"`
	Search     SearchSelectors     `yaml:"search"`
}

type ProductSelectors struct {
	Ready       string   `yaml:"ready"`
	BlobMarker  string   `yaml:"blob_marker"`
	Name        []string `yaml:"name"`
	Brand       []string `yaml:"brand"`
	Price       []string `yaml:"price"`
	Rating      []string `yaml:"rating"`
	Description []string `yaml:"description"`
	Images      []string `yaml:"images"`
}

type ReviewSelectors struct {
	BlobPatterns []string `yaml:"blob_patterns"`
	Card         []string `yaml:"card"`
	Author       []string `yaml:"author"`
	Rating       []string `yaml:"rating"`
	Title        []string `yaml:"title"`
	Body         []string `yaml:"body"`
	Date         []string `yaml:"date"`
	Helpful      []string `yaml:"helpful"`
}

// ReviewPageSelectors drive the renderer while on a review view. Entries
// starting with "//" are XPath, everything else is CSS.
type ReviewPageSelectors struct {
	EndIndicators []string `yaml:"end_indicators"`
	LoadMore      []string `yaml:"load_more"`
	Popups        []string `yaml:"popups"`
	AllowPhrases  []string `yaml:"allow_phrases"`
	BlockPhrases  []string `yaml:"block_phrases"`
	ScrollScripts []string `yaml:"scroll_scripts"`
}

type SearchSelectors struct {
	Path             string   `yaml:"path"`
	ProductLinks     string   `yaml:"product_links"`
	NoResultsPhrases []string `yaml:"no_results_phrases"`
}

// DefaultSelectors returns the embedded catalog.
func DefaultSelectors() *Selectors {
	sel, err := ParseSelectors(defaultSelectors)
	if err != nil {
		panic(fmt.Sprintf("embedded selector catalog is invalid: %v", err))
	}
	return sel
}

// LoadSelectors reads a catalog file. An empty path yields the embedded default.
func LoadSelectors(path string) (*Selectors, error) {
	if path == "" {
		return DefaultSelectors(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selector catalog: %w", err)
	}

	sel, err := ParseSelectors(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load selector catalog %s: %w", path, err)
	}

	return sel, nil
}

func ParseSelectors(data []byte) (*Selectors, error) {
	var sel Selectors
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return nil, fmt.Errorf("failed to decode selector catalog: %w", err)
	}

	if err := sel.Validate(); err != nil {
		return nil, err
	}

	return &sel, nil
}

func (s *Selectors) Validate() error {
	if s.Version < 1 {
		return fmt.Errorf("selector catalog version must be at least 1")
	}

	if len(s.Product.Name) == 0 {
		return fmt.Errorf("selector catalog needs at least one product name selector")
	}

	if s.Search.ProductLinks == "" {
		return fmt.Errorf("selector catalog needs a search product link selector")
	}

	if len(s.ReviewPage.AllowPhrases) == 0 {
		return fmt.Errorf("selector catalog needs load-more allow phrases")
	}

	return nil
}
