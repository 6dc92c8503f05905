// Package diagnostics collects compile-time messages across every phase of
// the pipeline, keyed by source span, per spec §4.1.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
)

// Level is the severity of a Diagnostic.
type Level int

const (
	Warning Level = iota
	Error
)

func (l Level) String() string {
	if l == Error {
		return "error"
	}
	return "warning"
}

// Span is a half-open range over a source file, 1-based on both ends.
// Span union is the min start and max end, as specified in §4.1.
type Span struct {
	Line, Column       int
	EndLine, EndColumn int
}

// Union returns the smallest span covering both a and b.
func Union(a, b Span) Span {
	u := a
	if before(b.Line, b.Column, u.Line, u.Column) {
		u.Line, u.Column = b.Line, b.Column
	}
	if before(u.EndLine, u.EndColumn, b.EndLine, b.EndColumn) {
		u.EndLine, u.EndColumn = b.EndLine, b.EndColumn
	}
	return u
}

func before(l1, c1, l2, c2 int) bool {
	if l1 != l2 {
		return l1 < l2
	}
	return c1 < c2
}

// Diagnostic is a single compile-time message, per spec §4.1.
type Diagnostic struct {
	Level   Level
	Phase   string
	Message string
	Span    Span
	HasSpan bool
}

func (d Diagnostic) String() string {
	if !d.HasSpan {
		return fmt.Sprintf("[%s] %s: %s", d.Phase, d.Level, d.Message)
	}
	return fmt.Sprintf("[%s] %d:%d: %s: %s", d.Phase, d.Span.Line, d.Span.Column, d.Level, d.Message)
}

// Bag is an ordered collection of Diagnostics. Every phase owns one and
// appends to it instead of aborting on the first problem; the driver decides
// whether to proceed once a phase completes.
type Bag struct {
	entries []Diagnostic
}

// Add appends a spanned diagnostic.
func (b *Bag) Add(level Level, phase string, span Span, format string, args ...any) {
	b.entries = append(b.entries, Diagnostic{
		Level:   level,
		Phase:   phase,
		Message: fmt.Sprintf(format, args...),
		Span:    span,
		HasSpan: true,
	})
}

// AddSpanless appends a diagnostic with no originating span (e.g. a missing
// file, or a cross-file import cycle).
func (b *Bag) AddSpanless(level Level, phase string, format string, args ...any) {
	b.entries = append(b.entries, Diagnostic{
		Level:   level,
		Phase:   phase,
		Message: fmt.Sprintf(format, args...),
	})
}

// Extend appends every entry of other to b, preserving source order across
// phases as required by spec §5's ordering guarantee.
func (b *Bag) Extend(other *Bag) {
	b.entries = append(b.entries, other.entries...)
}

// Entries returns every collected Diagnostic in order.
func (b *Bag) Entries() []Diagnostic {
	return b.entries
}

// HasErrors reports whether any Error-level entry was collected.
func (b *Bag) HasErrors() bool {
	for _, e := range b.entries {
		if e.Level == Error {
			return true
		}
	}
	return false
}

// Summary renders a one-line, pluralized count of errors and warnings,
// e.g. "2 errors, 1 warning".
func (b *Bag) Summary() string {
	var errs, warns int
	for _, e := range b.entries {
		if e.Level == Error {
			errs++
		} else {
			warns++
		}
	}
	parts := make([]string, 0, 2)
	if errs > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", errs, pluralCount("error", errs)))
	}
	if warns > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", warns, pluralCount("warning", warns)))
	}
	if len(parts) == 0 {
		return "no errors"
	}
	return strings.Join(parts, ", ")
}

// pluralCount renders word in singular or plural form depending on n.
func pluralCount(word string, n int) string {
	if n == 1 {
		return word
	}
	return inflection.Plural(word)
}

// String renders every diagnostic, one per line, followed by the summary.
func (b *Bag) String() string {
	var sb strings.Builder
	for _, e := range b.entries {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	sb.WriteString(b.Summary())
	return sb.String()
}
