package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"cypherify/internal/classifier"
	"cypherify/internal/password"
)

// Format and Version identify exported documents.
const (
	Format  = "cypherify-analysis"
	Version = 1
)

const schemaURL = "https://cypherify.local/schema/analysis-v1.schema.json"

//go:embed schema/analysis-v1.schema.json
var schemaData []byte

// ErrInvalidDocument is returned when a document does not match the
// export schema.
var ErrInvalidDocument = errors.New("report: document does not match schema")

// Kind names the result carried by a Document.
type Kind string

const (
	KindClassification Kind = "classification"
	KindTransform      Kind = "transform"
	KindPassword       Kind = "password"
	KindPIN            Kind = "pin"
)

// Document is the exported JSON form of one analysis.
type Document struct {
	Format         string                      `json:"format"`
	Version        int                         `json:"version"`
	GeneratedAt    time.Time                   `json:"generated_at"`
	Kind           Kind                        `json:"kind"`
	Classification *classifier.Result          `json:"classification,omitempty"`
	Transform      *classifier.TransformResult `json:"transform,omitempty"`
	Password       *password.Estimate          `json:"password,omitempty"`
	PIN            *password.PINAnalysis       `json:"pin,omitempty"`
}

func newDocument(kind Kind) *Document {
	return &Document{Format: Format, Version: Version, GeneratedAt: time.Now().UTC(), Kind: kind}
}

// NewClassificationDocument wraps a classification result.
func NewClassificationDocument(res *classifier.Result) *Document {
	d := newDocument(KindClassification)
	d.Classification = res
	return d
}

// NewTransformDocument wraps a keyed transform result.
func NewTransformDocument(res *classifier.TransformResult) *Document {
	d := newDocument(KindTransform)
	d.Transform = res
	return d
}

// NewPasswordDocument wraps a password estimate.
func NewPasswordDocument(est *password.Estimate) *Document {
	d := newDocument(KindPassword)
	d.Password = est
	return d
}

// NewPINDocument wraps a PIN analysis.
func NewPINDocument(a *password.PINAnalysis) *Document {
	d := newDocument(KindPIN)
	d.PIN = a
	return d
}

// Marshal encodes the document and validates the encoding against the
// export schema.
func (d *Document) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("report: encode: %w", err)
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// WriteJSON writes the validated document to w.
func WriteJSON(w io.Writer, d *Document) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func exportSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaData)); err != nil {
			schemaErr = fmt.Errorf("report: add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("report: compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// Validate checks an encoded document against the export schema.
func Validate(data []byte) error {
	schema, err := exportSchema()
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

// Schema returns the raw export schema.
func Schema() []byte {
	return bytes.Clone(schemaData)
}
