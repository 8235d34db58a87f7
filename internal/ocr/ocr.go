// Package ocr turns raw disclosure artifacts into plain text for the body
// parser.
package ocr

import (
	"bytes"
	"context"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// Extractor extracts text content from a raw artifact.
type Extractor interface {
	ExtractText(ctx context.Context, artifact []byte) (string, error)
}

var pdfMagic = []byte("%PDF")

// IsPDF reports whether the artifact carries the PDF header.
func IsPDF(artifact []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(artifact, " \t\r\n\x00"), pdfMagic)
}

// NewExtractor returns the default extractor: PDFs go through pdftotext and
// anything that is already valid UTF-8 text is passed through unchanged.
func NewExtractor(pdfToTextPath string) Extractor {
	return &autoExtractor{pdf: NewPdfToText(pdfToTextPath)}
}

type autoExtractor struct {
	pdf *PdfToText
}

func (a *autoExtractor) ExtractText(ctx context.Context, artifact []byte) (string, error) {
	if IsPDF(artifact) {
		return a.pdf.ExtractText(ctx, artifact)
	}
	if !utf8.Valid(artifact) {
		return "", eris.New("ocr: artifact is neither a PDF nor UTF-8 text")
	}
	return string(artifact), nil
}
