// Package content holds the copy rendered on the landing page.
package content

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/DukeRupert/cardapiofacil/internal/domain"
)

//go:embed content.yaml
var defaultDocument []byte

// Hero is the headline block. Each experiment variant has its own.
type Hero struct {
	Title       string   `yaml:"title"`
	Subtitle    string   `yaml:"subtitle"`
	Tagline     string   `yaml:"tagline"`
	Description string   `yaml:"description"`
	Image       string   `yaml:"image"`
	ImageAlt    string   `yaml:"image_alt"`
	CTA         string   `yaml:"cta"`
	Highlights  []string `yaml:"highlights"`
}

type Item struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type Plan struct {
	Name     string   `yaml:"name"`
	Price    string   `yaml:"price"`
	Period   string   `yaml:"period"`
	Badge    string   `yaml:"badge"`
	Trial    string   `yaml:"trial"`
	Features []string `yaml:"features"`
}

type Testimonial struct {
	Name    string `yaml:"name"`
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
	Rating  int    `yaml:"rating"`
}

type Question struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

// Options holds the labels of the form's select inputs keyed by value.
type Options struct {
	FamilySize          map[domain.FamilySize]string         `yaml:"family_size"`
	DietaryRestrictions map[domain.DietaryRestriction]string `yaml:"dietary_restrictions"`
}

// Section is one numbered part of a legal document.
type Section struct {
	Title      string   `yaml:"title"`
	Paragraphs []string `yaml:"paragraphs"`
	Items      []string `yaml:"items"`
}

// Document is a standalone text page such as the terms of use.
type Document struct {
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	UpdatedAt   string    `yaml:"updated_at"`
	Sections    []Section `yaml:"sections"`
}

// Legal holds the documents the signup form asks visitors to accept.
type Legal struct {
	Terms   Document `yaml:"terms"`
	Privacy Document `yaml:"privacy"`
}

// Option is a select input entry.
type Option struct {
	Value string
	Label string
}

// Content is the whole landing page document.
type Content struct {
	Brand        string                  `yaml:"brand"`
	Heroes       map[domain.Variant]Hero `yaml:"heroes"`
	Features     []Item                  `yaml:"features"`
	Steps        []Item                  `yaml:"steps"`
	Plans        []Plan                  `yaml:"plans"`
	Testimonials []Testimonial           `yaml:"testimonials"`
	FAQ          []Question              `yaml:"faq"`
	Options      Options                 `yaml:"options"`
	Legal        Legal                   `yaml:"legal"`
}

// Default parses the embedded document.
func Default() (*Content, error) {
	return Parse(bytes.NewReader(defaultDocument))
}

// Parse decodes and validates a content document. Unknown keys are errors
// so a typo in the document fails at startup instead of rendering blank.
func Parse(r io.Reader) (*Content, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Content
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every variant has a hero, every select value has a
// label, there is at least one plan and both legal documents have text.
func (c *Content) Validate() error {
	var errs []error

	if c.Brand == "" {
		errs = append(errs, errors.New("brand is required"))
	}

	for _, v := range []domain.Variant{domain.VariantControl, domain.VariantA, domain.VariantB} {
		h, ok := c.Heroes[v]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("hero for variant %q is missing", v))
		case h.Subtitle == "" || h.CTA == "":
			errs = append(errs, fmt.Errorf("hero for variant %q needs a subtitle and a cta", v))
		}
	}
	for v := range c.Heroes {
		if !v.IsValid() {
			errs = append(errs, fmt.Errorf("hero for unknown variant %q", v))
		}
	}

	for _, s := range domain.FamilySizes {
		if c.Options.FamilySize[s] == "" {
			errs = append(errs, fmt.Errorf("family size %q has no label", s))
		}
	}
	for _, d := range domain.DietaryRestrictions {
		if c.Options.DietaryRestrictions[d] == "" {
			errs = append(errs, fmt.Errorf("dietary restriction %q has no label", d))
		}
	}

	if len(c.Plans) == 0 {
		errs = append(errs, errors.New("at least one pricing plan is required"))
	}
	for i, t := range c.Testimonials {
		if t.Rating < 1 || t.Rating > 5 {
			errs = append(errs, fmt.Errorf("testimonial %d: rating must be between 1 and 5", i))
		}
	}

	for name, doc := range map[string]Document{"terms": c.Legal.Terms, "privacy": c.Legal.Privacy} {
		if doc.Title == "" || len(doc.Sections) == 0 {
			errs = append(errs, fmt.Errorf("legal %s needs a title and at least one section", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid content: %w", errors.Join(errs...))
	}
	return nil
}

// Hero returns the hero for v, falling back to the control hero.
func (c *Content) Hero(v domain.Variant) Hero {
	if h, ok := c.Heroes[v]; ok {
		return h
	}
	return c.Heroes[domain.VariantControl]
}

// FamilySizeOptions lists the family size choices in display order.
func (c *Content) FamilySizeOptions() []Option {
	out := make([]Option, 0, len(domain.FamilySizes))
	for _, s := range domain.FamilySizes {
		out = append(out, Option{Value: string(s), Label: c.Options.FamilySize[s]})
	}
	return out
}

// DietaryOptions lists the dietary restriction choices in display order.
func (c *Content) DietaryOptions() []Option {
	out := make([]Option, 0, len(domain.DietaryRestrictions))
	for _, d := range domain.DietaryRestrictions {
		out = append(out, Option{Value: string(d), Label: c.Options.DietaryRestrictions[d]})
	}
	return out
}

// FamilySizeLabel returns the label for a submitted value, or the value
// itself when it is unknown.
func (c *Content) FamilySizeLabel(value string) string {
	if l, ok := c.Options.FamilySize[domain.FamilySize(value)]; ok {
		return l
	}
	return value
}
