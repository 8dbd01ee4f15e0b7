// Package pdfextract pulls per-page plain text out of PDF byte streams.
package pdfextract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"intellidocs/internal/model"
)

var (
	// ErrUnreadablePDF means the bytes are not a parseable PDF, or the file
	// is encrypted without a usable password.
	ErrUnreadablePDF = errors.New("unreadable pdf")
	// ErrEmptyDocument means no page yielded any extractable text, e.g. a
	// scanned image-only PDF. OCR is out of scope.
	ErrEmptyDocument = errors.New("pdf contains no extractable text")
)

// Result carries the extracted pages plus a count of pages that were skipped
// because their content could not be decoded.
type Result struct {
	Pages        []model.Page
	SkippedPages int
}

// Extract parses the PDF in b and returns the text of each page, 1-based.
// Individual page failures are tolerated: the page is skipped and counted,
// and extraction continues, so a partially extractable document is still
// usable for retrieval. Extract is a pure transform of its input.
func Extract(b []byte) (*Result, error) {
	if len(b) == 0 {
		return nil, ErrUnreadablePDF
	}

	reader, err := newReader(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadablePDF, err)
	}

	res := &Result{}
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		text, err := extractPage(reader, i)
		if err != nil {
			res.SkippedPages++
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			res.SkippedPages++
			continue
		}
		res.Pages = append(res.Pages, model.Page{Number: i, Text: text})
	}

	if len(res.Pages) == 0 {
		return nil, ErrEmptyDocument
	}
	return res, nil
}

func newReader(b []byte) (r *pdf.Reader, err error) {
	// The parser panics on some malformed files; treat that as unreadable.
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("pdf parse panic: %v", p)
		}
	}()
	return pdf.NewReader(bytes.NewReader(b), int64(len(b)))
}

func extractPage(r *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("page %d extract panic: %v", num, p)
		}
	}()
	page := r.Page(num)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d missing", num)
	}
	return page.GetPlainText(nil)
}
