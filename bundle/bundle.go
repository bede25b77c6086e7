// Package bundle builds diagnostics bundles: a diff document plus the
// normalizer configuration that produced it, optionally stripped of source
// text so it can be attached to bug reports.
package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"semdiff/cas"
	"semdiff/diff"
	"semdiff/normalize"
)

// Version is the bundle format version.
const Version = "0.1.0"

// Summary holds the counts copied from the diff document.
type Summary struct {
	OperationCount int `json:"operationCount"`
	MoveCount      int `json:"moveCount"`
	RenameCount    int `json:"renameCount"`
}

// CompressedExt marks bundle paths that are written zstd-compressed.
const CompressedExt = ".zst"

// zstdMagic starts every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Bundle is a self-describing diagnostics snapshot.
type Bundle struct {
	ID        string            `json:"id"`
	Version   string            `json:"version"`
	CreatedAt time.Time         `json:"createdAt"`
	Redacted  bool              `json:"redacted"`
	Summary   Summary           `json:"summary"`
	Config    *normalize.Config `json:"config,omitempty"`
	Diff      *diff.Document    `json:"diff,omitempty"`
	Digest    string            `json:"digest,omitempty"`
}

// Options controls what a bundle embeds.
type Options struct {
	// IncludeSource keeps oldText/newText in the embedded document.
	IncludeSource bool
	// OmitDiff leaves the document out, keeping only the summary.
	OmitDiff bool
	// Now overrides the clock used for CreatedAt.
	Now func() time.Time
	// NewID overrides the bundle id generator.
	NewID func() string
}

func newUUID() string {
	return uuid.New().String()
}

// New builds a bundle from doc and an optional config. doc is never
// modified; the bundle embeds its own copy.
func New(doc *diff.Document, cfg *normalize.Config, opts Options) (*Bundle, error) {
	if doc == nil {
		return nil, fmt.Errorf("bundle: nil diff document")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = newUUID
	}

	s := doc.Summary()
	b := &Bundle{
		ID:        newID(),
		Version:   Version,
		CreatedAt: now().UTC(),
		Redacted:  !opts.IncludeSource,
		Summary: Summary{
			OperationCount: s.OperationCount,
			MoveCount:      s.MoveCount,
			RenameCount:    s.RenameCount,
		},
	}
	if cfg != nil {
		c := cfg.Clone()
		b.Config = &c
	}

	if opts.OmitDiff {
		return b, nil
	}
	embedded := doc.Clone()
	if !opts.IncludeSource {
		Redact(embedded)
	}
	digest, err := cas.Digest(embedded)
	if err != nil {
		return nil, fmt.Errorf("bundle: digesting diff: %w", err)
	}
	b.Diff = embedded
	b.Digest = digest
	return b, nil
}

// Redact removes source text from every operation of doc in place. Callers
// that need the original should pass a Clone.
func Redact(doc *diff.Document) {
	for i := range doc.Operations {
		doc.Operations[i].OldText = nil
		doc.Operations[i].NewText = nil
	}
}

// Redacted returns a copy of doc without source text.
func Redacted(doc *diff.Document) *diff.Document {
	out := doc.Clone()
	Redact(out)
	return out
}

// Verify recomputes the digest of the embedded diff.
func (b *Bundle) Verify() error {
	if b.Diff == nil {
		return nil
	}
	digest, err := cas.Digest(b.Diff)
	if err != nil {
		return fmt.Errorf("bundle: digesting diff: %w", err)
	}
	if digest != b.Digest {
		return fmt.Errorf("bundle: digest mismatch: have %s, computed %s", b.Digest, digest)
	}
	return nil
}

// MarshalIndent encodes the bundle as indented JSON.
func (b *Bundle) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

// Write encodes the bundle to path. Paths ending in CompressedExt are
// zstd-compressed.
func (b *Bundle) Write(path string) error {
	data, err := b.MarshalIndent()
	if err != nil {
		return fmt.Errorf("bundle: encoding: %w", err)
	}
	data = append(data, '\n')
	if strings.HasSuffix(path, CompressedExt) {
		if data, err = compress(data); err != nil {
			return fmt.Errorf("bundle: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("bundle: writing %s: %w", path, err)
	}
	return nil
}

func compress(data []byte) ([]byte, error) {
	var compressed bytes.Buffer
	encoder, err := zstd.NewWriter(&compressed)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	if _, err := encoder.Write(data); err != nil {
		encoder.Close()
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("closing encoder: %w", err)
	}
	return compressed.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decoder.Close()
	out, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return out, nil
}

// Read decodes a bundle from path and verifies its digest. Compressed
// bundles are recognized by the zstd frame magic, whatever their extension.
func Read(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bundle: reading %s: %w", path, err)
	}
	if bytes.HasPrefix(data, zstdMagic) {
		if data, err = decompress(data); err != nil {
			return nil, fmt.Errorf("bundle: %s: %w", path, err)
		}
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("bundle: decoding %s: %w", path, err)
	}
	if err := b.Verify(); err != nil {
		return nil, err
	}
	return &b, nil
}
