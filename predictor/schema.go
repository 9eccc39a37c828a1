// schema.go - Eingabe-Schema der Varianten
//
// Dieses Modul enthaelt:
// - Field: Beschreibung eines Inputs (Typ, Default, Choices, Grenzen)
// - SchemaDocument: JSON Schema mit stabiler Property-Reihenfolge
// - Schema.Decode: Validierung, Defaults, Dekodierung in die Request-Struktur
package predictor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/santhosh-tekuri/jsonschema/v5"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Field types as used in the JSON schema.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
)

// Field describes one input of a variant.
type Field struct {
	Name        string
	Type        string
	Description string
	Default     any
	Choices     []string
	Minimum     *float64
	Maximum     *float64
	Required    bool
}

func bound(f float64) *float64 { return &f }

// Schema validates and decodes raw inputs of one variant.
type Schema struct {
	fields   []Field
	doc      *orderedmap.OrderedMap[string, any]
	compiled *jsonschema.Schema
}

// NewSchema builds and compiles the schema for fields.
func NewSchema(fields []Field) (*Schema, error) {
	doc := SchemaDocument(fields)
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("input.json", bytes.NewReader(b)); err != nil {
		return nil, err
	}

	compiled, err := c.Compile("input.json")
	if err != nil {
		return nil, err
	}

	return &Schema{fields: fields, doc: doc, compiled: compiled}, nil
}

func mustSchema(fields []Field) *Schema {
	s, err := NewSchema(fields)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Fields() []Field {
	return slices.Clone(s.fields)
}

// Document returns the JSON schema document.
func (s *Schema) Document() *orderedmap.OrderedMap[string, any] {
	return s.doc
}

// SchemaDocument renders fields as a JSON Schema object. Properties keep
// the order of fields.
func SchemaDocument(fields []Field) *orderedmap.OrderedMap[string, any] {
	titler := cases.Title(language.English)

	properties := orderedmap.New[string, any]()
	var required []string
	for i, f := range fields {
		p := orderedmap.New[string, any]()
		p.Set("title", titler.String(strings.ReplaceAll(f.Name, "_", " ")))
		p.Set("type", f.Type)
		if f.Description != "" {
			p.Set("description", f.Description)
		}
		if f.Default != nil {
			p.Set("default", f.Default)
		}
		if len(f.Choices) > 0 {
			p.Set("enum", f.Choices)
		}
		if f.Minimum != nil {
			p.Set("minimum", *f.Minimum)
		}
		if f.Maximum != nil {
			p.Set("maximum", *f.Maximum)
		}
		if f.Required && f.Type == TypeString {
			p.Set("minLength", 1)
		}
		p.Set("x-order", i)
		properties.Set(f.Name, p)

		if f.Required {
			required = append(required, f.Name)
		}
	}

	doc := orderedmap.New[string, any]()
	doc.Set("title", "Input")
	doc.Set("type", "object")
	doc.Set("properties", properties)
	if len(required) > 0 {
		doc.Set("required", required)
	}
	doc.Set("additionalProperties", false)
	return doc
}

// Decode validates in, fills in defaults and decodes the result into dst.
// Every violation is reported as ErrInvalidInput.
func (s *Schema) Decode(in Input, dst any) error {
	raw, err := normalize(in)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if err := s.checkChoices(raw); err != nil {
		return err
	}

	if err := s.compiled.Validate(raw); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("%w: %s", ErrInvalidInput, describe(ve))
		}
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	for _, f := range s.fields {
		if _, ok := raw[f.Name]; !ok && f.Default != nil {
			raw[f.Name] = f.Default
		}
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// normalize round-trips in through JSON so Go values and decoded JSON look
// the same to the validator.
func normalize(in Input) (map[string]any, error) {
	raw := map[string]any{}
	if len(in) == 0 {
		return raw, nil
	}

	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Schema) checkChoices(raw map[string]any) error {
	for _, f := range s.fields {
		if len(f.Choices) == 0 {
			continue
		}

		v, ok := raw[f.Name].(string)
		if !ok || slices.Contains(f.Choices, v) {
			continue
		}

		return fmt.Errorf("%w: %s: %q is not one of %s, did you mean %q?",
			ErrInvalidInput, f.Name, v, strings.Join(f.Choices, ", "), closest(v, f.Choices))
	}
	return nil
}

func closest(s string, choices []string) string {
	best, bestDist := "", -1
	for _, c := range choices {
		d := levenshtein.ComputeDistance(strings.ToLower(s), strings.ToLower(c))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func describe(ve *jsonschema.ValidationError) string {
	var msgs []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			if loc := strings.TrimPrefix(e.InstanceLocation, "/"); loc != "" {
				msgs = append(msgs, loc+": "+e.Message)
			} else {
				msgs = append(msgs, e.Message)
			}
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(msgs, "; ")
}
