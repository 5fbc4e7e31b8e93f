package parsers

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"

	"ledger-location-reconciler/internal/budget"
	"ledger-location-reconciler/internal/models"
	apperrors "ledger-location-reconciler/pkg/errors"
	"ledger-location-reconciler/pkg/logger"
)

// BudgetConfig describes a budget export's column layout.
type BudgetConfig struct {
	CategoryColumn string
	LocationColumn string
	EpisodeColumn  string
	HeaderColumn   string
	RateColumn     string
	QuantityColumn string
	DurationColumn string
	Delimiter      rune
	ColumnAliases  map[string]string
}

// DefaultBudgetConfig returns the layout of standard budget exports.
func DefaultBudgetConfig() *BudgetConfig {
	return &BudgetConfig{
		CategoryColumn: "category",
		LocationColumn: "location",
		EpisodeColumn:  "episode",
		HeaderColumn:   "header",
		RateColumn:     "rate",
		QuantityColumn: "quantity",
		DurationColumn: "duration",
		Delimiter:      ',',
		ColumnAliases: map[string]string{
			"cat":          "category",
			"account_name": "category",
			"description":  "category",
			"set":          "location",
			"set_location": "location",
			"location_ref": "location",
			"ep":           "episode",
			"episode_no":   "episode",
			"episode_ref":  "episode",
			"section":      "header",
			"header_ref":   "header",
			"group":        "header",
			"price":        "rate",
			"unit_rate":    "rate",
			"qty":          "quantity",
			"units":        "quantity",
			"days":         "duration",
			"periods":      "duration",
			"x":            "duration",
		},
	}
}

// BudgetParser parses budget exports into line items plus the
// location-to-header and header-to-episode reference maps used for
// episode resolution.
type BudgetParser struct {
	config *BudgetConfig
	log    logger.Logger
}

// NewBudgetParser creates a parser; a nil config uses defaults.
func NewBudgetParser(config *BudgetConfig) (*BudgetParser, error) {
	if config == nil {
		config = DefaultBudgetConfig()
	}
	if config.CategoryColumn == "" || config.RateColumn == "" {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig,
			"budget columns", "category and rate columns are required", nil)
	}
	if config.Delimiter == 0 {
		config.Delimiter = ','
	}
	return &BudgetParser{config: config, log: logger.WithComponent("parsers")}, nil
}

// Parse dispatches on the file extension: CSV or XLSX workbook.
func (p *BudgetParser) Parse(path string) ([]*models.BudgetLineItem, *budget.ReferenceData, *ParseStats, error) {
	if sniffFormat(path) == "xlsx" {
		return p.ParseXLSX(path)
	}
	return p.ParseCSV(path)
}

// ParseCSV parses a CSV budget export.
func (p *BudgetParser) ParseCSV(path string) ([]*models.BudgetLineItem, *budget.ReferenceData, *ParseStats, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer f.Close()

	return p.parseRows(path, func(yield func([]string) error) error {
		reader := csv.NewReader(f)
		reader.Comma = p.config.Delimiter
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true

		for {
			record, err := reader.Read()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return apperrors.ParseError(apperrors.CodeInvalidFormat, path, 0, err.Error(), err)
			}
			if err := yield(record); err != nil {
				return err
			}
		}
	})
}

// ParseXLSX parses a budget workbook's first sheet.
func (p *BudgetParser) ParseXLSX(path string) ([]*models.BudgetLineItem, *budget.ReferenceData, *ParseStats, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, nil, apperrors.FileError(apperrors.CodeFileCorrupted, path, err)
	}
	if len(f.Sheets) == 0 {
		return nil, nil, nil, apperrors.ParseError(apperrors.CodeInvalidFormat, path, 0, "workbook has no sheets", nil)
	}
	sheet := f.Sheets[0]

	return p.parseRows(path, func(yield func([]string) error) error {
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

func (p *BudgetParser) parseRows(path string, iterate func(func([]string) error) error) ([]*models.BudgetLineItem, *budget.ReferenceData, *ParseStats, error) {
	start := time.Now()
	stats := &ParseStats{File: path}
	refs := budget.EmptyReferenceData()

	var items []*models.BudgetLineItem
	var header *headerIndex
	line := 0

	err := iterate(func(row []string) error {
		line++
		stats.TotalRows++

		if line == 1 {
			header = buildHeaderIndex(row, p.config.ColumnAliases)
			stats.TotalRows--
			return header.requireColumns(path, p.config.CategoryColumn, p.config.RateColumn)
		}

		item, rowErr := p.buildLineItem(header, row, line)
		if rowErr != nil {
			stats.recordError(rowErr)
			return nil
		}
		if item == nil {
			return nil
		}

		items = append(items, item)
		stats.ParsedRows++
		refs.Record(item.LocationRef, item.HeaderRef, item.EpisodeRef)
		return nil
	})
	if err != nil {
		return nil, nil, stats, err
	}

	if len(items) == 0 {
		return nil, nil, stats, apperrors.BudgetError(apperrors.CodeEmptyBudget, path, nil)
	}

	stats.ParseSeconds = time.Since(start).Seconds()
	p.log.WithFields(logger.Fields{
		"file":    path,
		"parsed":  stats.ParsedRows,
		"skipped": stats.SkippedRows,
	}).Info("budget file parsed")

	return items, refs, stats, nil
}

// buildLineItem converts one budget row. Blank rows return (nil,nil).
// An empty quantity or duration cell stays nil so the subtotal treats
// it as one unit; an explicit "0" becomes a zero pointer and zeroes the
// subtotal.
func (p *BudgetParser) buildLineItem(header *headerIndex, row []string, line int) (*models.BudgetLineItem, *RowError) {
	category := header.get(row, p.config.CategoryColumn)
	rateStr := header.get(row, p.config.RateColumn)
	if category == "" && rateStr == "" {
		return nil, nil
	}
	if rateStr == "" {
		rateStr = "0"
	}

	rate, err := models.ParseDecimalFromString(rateStr)
	if err != nil {
		return nil, &RowError{Line: line, Field: p.config.RateColumn, Value: rateStr, Message: err.Error()}
	}

	quantity, rowErr := p.optionalDecimal(header, row, line, p.config.QuantityColumn)
	if rowErr != nil {
		return nil, rowErr
	}
	duration, rowErr := p.optionalDecimal(header, row, line, p.config.DurationColumn)
	if rowErr != nil {
		return nil, rowErr
	}

	return &models.BudgetLineItem{
		Category:    budget.NormalizeCategory(category),
		LocationRef: header.get(row, p.config.LocationColumn),
		EpisodeRef:  header.get(row, p.config.EpisodeColumn),
		HeaderRef:   header.get(row, p.config.HeaderColumn),
		Rate:        rate,
		Quantity:    quantity,
		Duration:    duration,
	}, nil
}

func (p *BudgetParser) optionalDecimal(header *headerIndex, row []string, line int, column string) (*decimal.Decimal, *RowError) {
	raw := header.get(row, column)
	if raw == "" {
		return nil, nil
	}
	value, err := models.ParseDecimalFromString(raw)
	if err != nil {
		return nil, &RowError{Line: line, Field: column, Value: raw, Message: err.Error()}
	}
	return &value, nil
}
