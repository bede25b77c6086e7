package diff

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"semdiff/geom"
)

//go:embed schema.json
var schema []byte

// schemaURL is the $id of schema.json.
const schemaURL = "https://semdiff.dev/schema/diff-document-0.1.0.json"

// Schema returns the JSON Schema of the diff document.
func Schema() []byte {
	return append([]byte(nil), schema...)
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
	if err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("adding schema: %w", err)
	}
	return c.Compile(schemaURL)
})

// ErrInvalidDocument is wrapped by every error returned from Validate.
var ErrInvalidDocument = errors.New("invalid diff document")

// Validate checks the JSON encoding of the document against the published
// schema, then the rules a schema cannot express: finite confidences, unique
// ids, references that resolve and ranges that do not run backwards.
func (d *Document) Validate() error {
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidDocument, fmt.Sprintf(format, args...)))
	}

	finite := d.checkConfidences(fail)
	if finite {
		if err := d.validateSchema(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidDocument, err))
		}
	}

	moveIDs := make(map[string]bool, len(d.Moves))
	for _, m := range d.Moves {
		if m.ID != "" && moveIDs[m.ID] {
			fail("duplicate move id %q", m.ID)
		}
		moveIDs[m.ID] = true
	}
	renameIDs := make(map[string]bool, len(d.Renames))
	for _, r := range d.Renames {
		if r.ID != "" && renameIDs[r.ID] {
			fail("duplicate rename id %q", r.ID)
		}
		renameIDs[r.ID] = true
	}

	opIDs := make(map[string]bool, len(d.Operations))
	for _, op := range d.Operations {
		if op.ID != "" && opIDs[op.ID] {
			fail("duplicate operation id %q", op.ID)
		}
		opIDs[op.ID] = true

		for _, r := range []*geom.Range{op.OldRange, op.NewRange} {
			if r != nil && !r.Valid() {
				fail("operation %q: invalid range %s", op.ID, r)
			}
		}
		if op.Meta == nil {
			continue
		}
		if op.Meta.MoveID != "" && !moveIDs[op.Meta.MoveID] {
			fail("operation %q: unknown moveId %q", op.ID, op.Meta.MoveID)
		}
		if op.Meta.RenameGroupID != "" && !renameIDs[op.Meta.RenameGroupID] {
			fail("operation %q: unknown renameGroupId %q", op.ID, op.Meta.RenameGroupID)
		}
	}

	for _, m := range d.Moves {
		if !m.OldRange.Valid() || !m.NewRange.Valid() {
			fail("move %q: invalid range", m.ID)
		}
		for _, id := range m.Operations {
			if !opIDs[id] {
				fail("move %q: unknown operation %q", m.ID, id)
			}
		}
	}

	return errors.Join(errs...)
}

// validateSchema checks the JSON encoding of d against schema.json.
func (d *Document) validateSchema() error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding: %w", err)
	}
	return sch.Validate(inst)
}

// checkConfidences reports out-of-range confidences. NaN and infinities
// cannot be encoded, so the schema pass is skipped when any is present.
func (d *Document) checkConfidences(fail func(string, ...interface{})) bool {
	finite := true
	check := func(what string, c float64) {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			finite = false
		}
		if !validConfidence(c) {
			fail("%s: confidence %v out of range", what, c)
		}
	}
	for _, op := range d.Operations {
		if op.Meta != nil && op.Meta.Confidence != nil {
			check(fmt.Sprintf("operation %q", op.ID), *op.Meta.Confidence)
		}
	}
	for _, m := range d.Moves {
		check(fmt.Sprintf("move %q", m.ID), m.Confidence)
	}
	for _, r := range d.Renames {
		check(fmt.Sprintf("rename %q", r.ID), r.Confidence)
	}
	return finite
}

func validConfidence(c float64) bool {
	return !math.IsNaN(c) && !math.IsInf(c, 0) && c >= 0 && c <= 1
}
