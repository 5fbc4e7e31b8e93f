package parsers

import (
	"bytes"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"ledger-location-reconciler/internal/models"
	apperrors "ledger-location-reconciler/pkg/errors"
)

const (
	// maxPDFTextBytes caps the extracted text-layer size.
	maxPDFTextBytes = 4 << 20

	// scannedCharsPerPage is the text-density floor below which a PDF is
	// treated as a scanned image with no usable text layer.
	scannedCharsPerPage = 100
)

// pdfLineRe matches one ledger line in a PDF text layer:
// description, then vendor, then a trailing amount. The vendor segment
// is optional; some reports run description straight into the amount.
var pdfLineRe = regexp.MustCompile(
	`^(.+?)` + // description, non-greedy
		`(?:\s{2,}\|?\s*([A-Z][A-Z0-9&.,'\- ]{2,}?))?` + // vendor in a separate column
		`\s+(\(?-?\$?\d{1,3}(?:,\d{3})*\.\d{2}\)?)\s*$`, // amount
)

// pdfSkipRe drops report furniture: page headers, totals, separators.
var pdfSkipRe = regexp.MustCompile(`(?i)^(?:page\s+\d+|total|subtotal|grand\s+total|report\s+date|[-=_]{3,})`)

// ParsePDF parses a text-layer ledger PDF. A scanned PDF, one whose
// text layer is too thin to carry the ledger rows, is a hard error so
// the operator re-exports rather than reconciling against nothing.
func (p *LedgerParser) ParsePDF(path string) ([]*models.Transaction, *ParseStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
		}
		return nil, nil, apperrors.FileError(apperrors.CodeFilePermission, path, err)
	}

	lines, err := extractPDFLines(path, data)
	if err != nil {
		return nil, nil, err
	}

	meta := ParseFileMetadata(path)
	return p.parseRows(path, meta, func(yield func([]string) error) error {
		// Synthetic header so the shared pipeline resolves columns the
		// same way it does for CSV and XLSX.
		if err := yield([]string{"description", "vendor", "amount"}); err != nil {
			return err
		}
		for _, line := range lines {
			if pdfSkipRe.MatchString(line) {
				continue
			}
			m := pdfLineRe.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			row := []string{strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), normalizePDFAmount(m[3])}
			if err := yield(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// extractPDFLines pulls the text layer and splits it into trimmed,
// non-empty lines. The pdf library panics on some malformed files, so
// the whole extraction runs under recover.
func extractPDFLines(path string, data []byte) (lines []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			lines = nil
			err = apperrors.ParseError(apperrors.CodeInvalidFormat, path, 0, "pdf text extraction failed", nil)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperrors.FileError(apperrors.CodeFileCorrupted, path, err)
	}

	pages := reader.NumPage()
	if pages < 1 {
		pages = 1
	}

	plainText, err := reader.GetPlainText()
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, path, 0, err.Error(), err)
	}
	textBytes, err := io.ReadAll(io.LimitReader(plainText, maxPDFTextBytes))
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, path, 0, err.Error(), err)
	}

	text := string(textBytes)
	if len(text)/pages < scannedCharsPerPage {
		return nil, apperrors.ParseError(apperrors.CodeScannedDocument, path, 0,
			"no usable text layer, re-export the report as CSV or a text PDF", nil)
	}

	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines, nil
}

// normalizePDFAmount folds accounting negatives "(1,234.56)" into the
// leading-minus form the shared decimal parser accepts directly.
func normalizePDFAmount(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		return "-" + strings.Trim(s, "()")
	}
	return s
}
