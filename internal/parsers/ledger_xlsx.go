package parsers

import (
	"github.com/tealeg/xlsx/v2"

	"ledger-location-reconciler/internal/models"
	apperrors "ledger-location-reconciler/pkg/errors"
)

// ParseXLSX parses a ledger workbook. The first sheet carries the
// export; the header row is resolved exactly like the CSV front end.
func (p *LedgerParser) ParseXLSX(path string) ([]*models.Transaction, *ParseStats, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, apperrors.FileError(apperrors.CodeFileCorrupted, path, err)
	}
	if len(f.Sheets) == 0 {
		return nil, nil, apperrors.ParseError(apperrors.CodeInvalidFormat, path, 0, "workbook has no sheets", nil)
	}
	sheet := f.Sheets[0]

	meta := ParseFileMetadata(path)
	return p.parseRows(path, meta, func(yield func([]string) error) error {
		for _, row := range sheet.Rows {
			cells := make([]string, len(row.Cells))
			for i, cell := range row.Cells {
				cells[i] = cell.String()
			}
			if err := yield(cells); err != nil {
				return err
			}
		}
		return nil
	})
}
