package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Parser extracts text from digital PDFs without calling the OCR API. It only
// works for files with an embedded text layer; scanned documents come back
// empty and should go through the API instead.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse reads the text layer of the PDF at path.
func (p *Parser) Parse(ctx context.Context, path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return strings.TrimSpace(sb.String()), nil
}
