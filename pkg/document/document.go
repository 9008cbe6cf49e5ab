// Package document defines the immutable document value handled by the
// validation and synthesis pipelines. A Document is created once at ingestion;
// every remediation produces a new Document rather than mutating the original.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalidText is returned when the supplied content is not valid UTF-8 text.
var ErrInvalidText = errors.New("document: content is not valid UTF-8 text")

// Document is an immutable text document plus its derived content hash.
type Document struct {
	Text         string `json:"text"`
	DocumentType string `json:"document_type"`
	ContentHash  string `json:"content_hash"`
}

// New ingests raw text and builds a Document. Text is NFC-normalized before
// hashing so that visually identical inputs produce the same hash. Empty text
// is allowed; non-UTF-8 input is rejected at the boundary.
func New(text, documentType string) (Document, error) {
	if !utf8.ValidString(text) {
		return Document{}, ErrInvalidText
	}
	normalized := norm.NFC.String(text)
	return Document{
		Text:         normalized,
		DocumentType: strings.TrimSpace(documentType),
		ContentHash:  HashText(normalized),
	}, nil
}

// WithText derives a new Document carrying the same type but replacement text.
// Used by the synthesis engine after each assembly step.
func (d Document) WithText(text string) Document {
	normalized := norm.NFC.String(text)
	return Document{
		Text:         normalized,
		DocumentType: d.DocumentType,
		ContentHash:  HashText(normalized),
	}
}

// IsEmpty reports whether the document carries no text at all.
func (d Document) IsEmpty() bool {
	return d.Text == ""
}

// HashText returns the SHA-256 hex digest of the given text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
