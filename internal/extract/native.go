package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNotPDF is returned when content lacks the PDF magic header.
var ErrNotPDF = errors.New("content is not a PDF")

// NativePDF reads the text layer of a PDF without any image analysis.
type NativePDF struct {
	// MaxPages stops extraction after this many pages; zero means no limit.
	MaxPages int
}

// Name implements Extractor.
func (n *NativePDF) Name() string {
	return string(MethodNative)
}

// Extract implements Extractor. Pages that fail to decode are skipped.
func (n *NativePDF) Extract(ctx context.Context, doc Document) (res Result, err error) {
	content := doc.Data
	if len(content) < 4 || string(content[:4]) != "%PDF" {
		return Result{}, ErrNotPDF
	}

	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			res, err = Result{}, fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Result{}, fmt.Errorf("parse pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if n.MaxPages > 0 && i > n.MaxPages {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return NewResult(sb.String(), MethodNative), nil
}
