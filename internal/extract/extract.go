// Package extract turns raw documents into text. Native PDF extraction is
// always tried first; when it yields too little text, an ordered chain of
// external OCR services is consulted until one succeeds.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Method identifies which tier produced a Result.
type Method string

// Extraction methods.
const (
	MethodNative   Method = "native"
	MethodServiceA Method = "vision-service-A"
	MethodServiceB Method = "vision-service-B"
)

// ErrInsufficientText marks a tier that ran but produced too little text.
// It triggers the next fallback and is never surfaced to callers.
var ErrInsufficientText = errors.New("insufficient extracted text")

// Document is a downloaded binary held only for the duration of extraction.
type Document struct {
	URL          string
	Data         []byte
	ContentType  string
	DeclaredSize int64
}

// Size is the larger of the declared and actual byte counts.
func (d Document) Size() int64 {
	if n := int64(len(d.Data)); n > d.DeclaredSize {
		return n
	}
	return d.DeclaredSize
}

// Result is the text produced for one document. An empty Method means no
// tier produced usable text.
type Result struct {
	Text      string
	Method    Method
	CharCount int
}

// Empty reports whether the result carries no text.
func (r Result) Empty() bool {
	return r.CharCount == 0
}

// NewResult trims text and counts its characters.
func NewResult(text string, method Method) Result {
	text = strings.TrimSpace(text)
	return Result{Text: text, Method: method, CharCount: utf8.RuneCountInString(text)}
}

// Extractor is one extraction tier.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, doc Document) (Result, error)
}

// OCRBackendError wraps the failure of a single fallback tier.
type OCRBackendError struct {
	Service string
	Err     error
}

func (e *OCRBackendError) Error() string {
	return fmt.Sprintf("ocr backend %s: %v", e.Service, e.Err)
}

func (e *OCRBackendError) Unwrap() error {
	return e.Err
}
