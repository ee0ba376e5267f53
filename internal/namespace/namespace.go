// Package namespace maps (subject, grade) pairs onto index partition keys.
package namespace

import (
	"strings"
	"unicode"

	"github.com/bull/curriculum-rag/internal/document"
)

// Default is the partition used for documents whose metadata lacks a subject or grade.
const Default = "General"

// Resolve returns the partition key for a subject and grade.
// The second result is false when either input is blank, meaning search must be global.
func Resolve(subject, grade string) (string, bool) {
	s := normalize(subject)
	g := normalize(grade)
	if s == "" || g == "" {
		return "", false
	}
	return s + "_" + g, true
}

// ForMetadata returns the partition a document's chunks are written to.
func ForMetadata(meta document.Metadata) string {
	if ns, ok := Resolve(meta.Subject, meta.Grade); ok {
		return ns
	}
	return Default
}

// normalize trims the value and replaces every interior whitespace rune with an underscore.
func normalize(value string) string {
	trimmed := strings.TrimSpace(value)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, trimmed)
}
