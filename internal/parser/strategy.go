package parser

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Result is the outcome of one extraction: either Found with a value and the
// name of the strategy that produced it, or NotFound.
type Result[T any] struct {
	Value  T
	Found  bool
	Source string
}

func Found[T any](value T, source string) Result[T] {
	return Result[T]{Value: value, Found: true, Source: source}
}

func NotFound[T any]() Result[T] {
	return Result[T]{}
}

// OrElse returns the value when found and def otherwise.
func (r Result[T]) OrElse(def T) T {
	if r.Found {
		return r.Value
	}
	return def
}

// Strategy is one named way of extracting a T from a document.
type Strategy[T any] struct {
	Name    string
	Extract func(doc *Document) Result[T]
}

// FirstFound runs strategies in order and returns the first Found result.
func FirstFound[T any](doc *Document, strategies ...Strategy[T]) Result[T] {
	for _, s := range strategies {
		if res := s.Extract(doc); res.Found {
			if res.Source == "" {
				res.Source = s.Name
			}
			return res
		}
	}
	return NotFound[T]()
}

// Document wraps raw page content and parses it into a DOM on first use.
type Document struct {
	Raw string

	once sync.Once
	dom  *goquery.Document
	err  error
}

func NewDocument(raw string) *Document {
	return &Document{Raw: raw}
}

func (d *Document) DOM() (*goquery.Document, error) {
	d.once.Do(func() {
		d.dom, d.err = goquery.NewDocumentFromReader(strings.NewReader(d.Raw))
	})
	return d.dom, d.err
}

// TextStrategies builds one strategy per CSS selector, each yielding the
// trimmed text of the first non-empty match.
func TextStrategies(selectors []string) []Strategy[string] {
	strategies := make([]Strategy[string], 0, len(selectors))
	for _, sel := range selectors {
		sel := sel
		strategies = append(strategies, Strategy[string]{
			Name: "css:" + sel,
			Extract: func(doc *Document) Result[string] {
				dom, err := doc.DOM()
				if err != nil {
					return NotFound[string]()
				}
				return selectionText(dom.Selection, sel)
			},
		})
	}
	return strategies
}

func selectionText(root *goquery.Selection, sel string) Result[string] {
	var text string
	root.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text = collapseSpace(s.Text())
		return text == ""
	})
	if text == "" {
		return NotFound[string]()
	}
	return Found(text, "css:"+sel)
}

// firstText tries selectors against a sub-tree, in order.
func firstText(root *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if res := selectionText(root, sel); res.Found {
			return res.Value
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
