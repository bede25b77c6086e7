package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText formats a diff document as human-readable text.
func (d *Document) FormatText() string {
	var sb strings.Builder

	for _, op := range d.Operations {
		sb.WriteString(formatOperation(op))
	}

	for _, m := range d.Moves {
		sb.WriteString(fmt.Sprintf("move %s: %s -> %s (confidence %.2f, %d ops)\n",
			m.ID, m.OldRange, m.NewRange, m.Confidence, len(m.Operations)))
	}
	for _, r := range d.Renames {
		sb.WriteString(fmt.Sprintf("rename %s: %s -> %s (%d occurrences, confidence %.2f)\n",
			r.ID, r.From, r.To, r.Occurrences, r.Confidence))
	}

	if len(d.Operations) > 0 {
		sb.WriteString("\nSummary: " + d.FormatStats() + "\n")
	}

	return sb.String()
}

// formatOperation formats a single operation.
func formatOperation(op Operation) string {
	typeChar := getTypeChar(op.Type)

	var tags []string
	if op.Meta != nil {
		if op.Meta.MoveID != "" {
			tags = append(tags, op.Meta.MoveID)
		}
		if op.Meta.RenameGroupID != "" {
			tags = append(tags, op.Meta.RenameGroupID)
		}
	}
	suffix := ""
	if len(tags) > 0 {
		suffix = " [" + strings.Join(tags, ", ") + "]"
	}

	switch op.Type {
	case OpInsert:
		return fmt.Sprintf("  %s %s: %s%s\n", typeChar, op.NewRange, truncateValue(deref(op.NewText)), suffix)
	case OpDelete:
		return fmt.Sprintf("  %s %s: %s%s\n", typeChar, op.OldRange, truncateValue(deref(op.OldText)), suffix)
	case OpMove:
		return fmt.Sprintf("  %s %s -> %s: %s%s\n", typeChar, op.OldRange, op.NewRange, truncateValue(deref(op.NewText)), suffix)
	default:
		return fmt.Sprintf("  %s %s: %s -> %s%s\n", typeChar, op.NewRange,
			truncateValue(deref(op.OldText)), truncateValue(deref(op.NewText)), suffix)
	}
}

func getTypeChar(t OpType) string {
	switch t {
	case OpInsert:
		return "+"
	case OpDelete:
		return "-"
	case OpUpdate:
		return "~"
	case OpMove:
		return ">"
	default:
		return " "
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncateValue(s string) string {
	// Remove newlines and excessive whitespace
	s = strings.Join(strings.Fields(s), " ")

	if r := []rune(s); len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return s
}

// FormatJSON formats a diff document as indented JSON.
func (d *Document) FormatJSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// ParseJSON decodes a diff document. Unknown fields are rejected; the result
// is not validated.
func ParseJSON(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding diff document: %w", err)
	}
	return &doc, nil
}

// FormatCompact formats a diff document with one line per operation.
func (d *Document) FormatCompact() string {
	var parts []string
	for _, op := range d.Operations {
		r := op.NewRange
		if r == nil {
			r = op.OldRange
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", getTypeChar(op.Type), op.ID, r))
	}
	return strings.Join(parts, "\n")
}

// FormatStats returns just the statistics line.
func (d *Document) FormatStats() string {
	s := d.Summary()
	return fmt.Sprintf("%d operations (%d+, %d-, %d~, %d>), %d moves, %d renames",
		s.OperationCount, s.Inserts, s.Deletes, s.Updates, s.MoveOps, s.MoveCount, s.RenameCount)
}
