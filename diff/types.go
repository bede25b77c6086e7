// Package diff provides structural, normalization-aware diff computation and
// the versioned diff document it produces.
package diff

import "semdiff/geom"

// Version is the diff document schema version.
const Version = "0.1.0"

// OpType represents the type of an operation.
type OpType string

const (
	OpInsert OpType = "insert"
	OpDelete OpType = "delete"
	OpUpdate OpType = "update"
	OpMove   OpType = "move"
)

// OpMeta carries optional grouping data for an operation.
type OpMeta struct {
	Confidence    *float64 `json:"confidence,omitempty"`
	MoveID        string   `json:"moveId,omitempty"`
	RenameGroupID string   `json:"renameGroupId,omitempty"`
}

// Operation is one reported change. Insert carries only the new side, delete
// only the old side; update and move carry both.
type Operation struct {
	ID       string      `json:"id"`
	Type     OpType      `json:"type"`
	OldRange *geom.Range `json:"oldRange,omitempty"`
	NewRange *geom.Range `json:"newRange,omitempty"`
	OldText  *string     `json:"oldText,omitempty"`
	NewText  *string     `json:"newText,omitempty"`
	Meta     *OpMeta     `json:"meta,omitempty"`
}

// MoveGroup is a relocated block and the operations that belong to it.
type MoveGroup struct {
	ID         string     `json:"id"`
	OldRange   geom.Range `json:"oldRange"`
	NewRange   geom.Range `json:"newRange"`
	Confidence float64    `json:"confidence"`
	Operations []string   `json:"operations"`
}

// RenameGroup is a consistent identifier substitution.
type RenameGroup struct {
	ID          string  `json:"id"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	Occurrences int     `json:"occurrences"`
	Confidence  float64 `json:"confidence"`
}

// Document is the result of one diff. Cross references between operations,
// moves and renames are plain ids.
type Document struct {
	Version    string        `json:"version"`
	Operations []Operation   `json:"operations"`
	Moves      []MoveGroup   `json:"moves"`
	Renames    []RenameGroup `json:"renames"`
}

// Summary provides aggregate statistics.
type Summary struct {
	OperationCount int `json:"operationCount"`
	MoveCount      int `json:"moveCount"`
	RenameCount    int `json:"renameCount"`
	Inserts        int `json:"inserts"`
	Deletes        int `json:"deletes"`
	Updates        int `json:"updates"`
	MoveOps        int `json:"moveOps"`
}

// NewDocument returns an empty document with non-nil collections.
func NewDocument() *Document {
	return &Document{
		Version:    Version,
		Operations: []Operation{},
		Moves:      []MoveGroup{},
		Renames:    []RenameGroup{},
	}
}

// Summary calculates counts from the document.
func (d *Document) Summary() Summary {
	s := Summary{
		OperationCount: len(d.Operations),
		MoveCount:      len(d.Moves),
		RenameCount:    len(d.Renames),
	}
	for _, op := range d.Operations {
		switch op.Type {
		case OpInsert:
			s.Inserts++
		case OpDelete:
			s.Deletes++
		case OpUpdate:
			s.Updates++
		case OpMove:
			s.MoveOps++
		}
	}
	return s
}

// Operation returns the operation with the given id.
func (d *Document) Operation(id string) (Operation, bool) {
	for _, op := range d.Operations {
		if op.ID == id {
			return op, true
		}
	}
	return Operation{}, false
}

// Move returns the move group with the given id.
func (d *Document) Move(id string) (MoveGroup, bool) {
	for _, m := range d.Moves {
		if m.ID == id {
			return m, true
		}
	}
	return MoveGroup{}, false
}

// Rename returns the rename group with the given id.
func (d *Document) Rename(id string) (RenameGroup, bool) {
	for _, r := range d.Renames {
		if r.ID == id {
			return r, true
		}
	}
	return RenameGroup{}, false
}

// Clone returns a deep copy that shares no memory with d.
func (d *Document) Clone() *Document {
	out := &Document{
		Version:    d.Version,
		Operations: make([]Operation, len(d.Operations)),
		Moves:      make([]MoveGroup, len(d.Moves)),
		Renames:    make([]RenameGroup, len(d.Renames)),
	}
	for i, op := range d.Operations {
		out.Operations[i] = op.clone()
	}
	for i, m := range d.Moves {
		m.Operations = append([]string{}, m.Operations...)
		out.Moves[i] = m
	}
	copy(out.Renames, d.Renames)
	return out
}

func (op Operation) clone() Operation {
	if op.OldRange != nil {
		r := *op.OldRange
		op.OldRange = &r
	}
	if op.NewRange != nil {
		r := *op.NewRange
		op.NewRange = &r
	}
	if op.OldText != nil {
		s := *op.OldText
		op.OldText = &s
	}
	if op.NewText != nil {
		s := *op.NewText
		op.NewText = &s
	}
	if op.Meta != nil {
		m := *op.Meta
		if m.Confidence != nil {
			c := *m.Confidence
			m.Confidence = &c
		}
		op.Meta = &m
	}
	return op
}
