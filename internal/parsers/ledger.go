package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"ledger-location-reconciler/internal/models"
	apperrors "ledger-location-reconciler/pkg/errors"
	"ledger-location-reconciler/pkg/logger"

	"github.com/google/uuid"
)

// LedgerConfig describes a ledger export's column layout. Accounting
// systems disagree on header vocabulary, so the alias map folds common
// variants onto the canonical column names.
type LedgerConfig struct {
	DescriptionColumn string
	VendorColumn      string
	AmountColumn      string
	AccountColumn     string
	IDColumn          string
	EpisodeColumn     string
	HasHeader         bool
	Delimiter         rune
	ColumnAliases     map[string]string
}

// DefaultLedgerConfig returns the layout of standard accounting exports.
func DefaultLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		DescriptionColumn: "description",
		VendorColumn:      "vendor",
		AmountColumn:      "amount",
		AccountColumn:     "account",
		IDColumn:          "transaction_id",
		EpisodeColumn:     "episode",
		HasHeader:         true,
		Delimiter:         ',',
		ColumnAliases: map[string]string{
			"desc":         "description",
			"memo":         "description",
			"detail":       "description",
			"line_description": "description",
			"payee":        "vendor",
			"vendor_name":  "vendor",
			"supplier":     "vendor",
			"amt":          "amount",
			"value":        "amount",
			"total":        "amount",
			"acct":         "account",
			"account_code": "account",
			"gl_account":   "account",
			"gl_code":      "account",
			"id":           "transaction_id",
			"trx_id":       "transaction_id",
			"txn_id":       "transaction_id",
			"ref":          "transaction_id",
			"ep":           "episode",
			"episode_no":   "episode",
		},
	}
}

// Validate checks the configuration for required column names.
func (c *LedgerConfig) Validate() error {
	if c.DescriptionColumn == "" || c.AmountColumn == "" {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig,
			"ledger columns", "description and amount columns are required", nil)
	}
	if c.Delimiter == 0 {
		c.Delimiter = ','
	}
	return nil
}

// LedgerParser parses ledger exports into Transaction records.
type LedgerParser struct {
	config *LedgerConfig
	log    logger.Logger
}

// NewLedgerParser creates a parser; a nil config uses defaults.
func NewLedgerParser(config *LedgerConfig) (*LedgerParser, error) {
	if config == nil {
		config = DefaultLedgerConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &LedgerParser{config: config, log: logger.WithComponent("parsers")}, nil
}

// ParseCSV parses a CSV ledger export. Row-level failures are recorded
// in the stats and skipped; only file-level failures return an error.
func (p *LedgerParser) ParseCSV(path string) ([]*models.Transaction, *ParseStats, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	meta := ParseFileMetadata(path)
	return p.parseRows(path, meta, func(yield func([]string) error) error {
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

// parseRows drives the shared row pipeline over any row source: the
// CSV reader, the XLSX sheet walker, or the PDF line splitter.
func (p *LedgerParser) parseRows(path string, meta FileMetadata, iterate func(func([]string) error) error) ([]*models.Transaction, *ParseStats, error) {
	start := time.Now()
	stats := &ParseStats{File: path}

	var transactions []*models.Transaction
	var header *headerIndex
	line := 0

	err := iterate(func(row []string) error {
		line++
		stats.TotalRows++

		if line == 1 && p.config.HasHeader {
			header = buildHeaderIndex(row, p.config.ColumnAliases)
			stats.TotalRows--
			return header.requireColumns(path, p.config.DescriptionColumn, p.config.AmountColumn)
		}
		if header == nil {
			return apperrors.ParseError(apperrors.CodeMissingColumn, path, 1, "header row", nil)
		}

		tx, rowErr := p.buildTransaction(header, row, line, meta)
		if rowErr != nil {
			stats.recordError(rowErr)
			return nil
		}
		if tx != nil {
			transactions = append(transactions, tx)
			stats.ParsedRows++
		}
		return nil
	})
	if err != nil {
		return nil, stats, err
	}

	stats.ParseSeconds = time.Since(start).Seconds()
	p.log.WithFields(logger.Fields{
		"file":    path,
		"parsed":  stats.ParsedRows,
		"skipped": stats.SkippedRows,
	}).Info("ledger file parsed")

	return transactions, stats, nil
}

// buildTransaction converts one data row. A blank row returns (nil,nil).
func (p *LedgerParser) buildTransaction(header *headerIndex, row []string, line int, meta FileMetadata) (*models.Transaction, *RowError) {
	description := header.get(row, p.config.DescriptionColumn)
	amountStr := header.get(row, p.config.AmountColumn)
	if description == "" && amountStr == "" {
		return nil, nil
	}
	if description == "" {
		return nil, &RowError{Line: line, Field: p.config.DescriptionColumn, Message: "empty description"}
	}

	amount, err := models.ParseDecimalFromString(amountStr)
	if err != nil {
		return nil, &RowError{Line: line, Field: p.config.AmountColumn, Value: amountStr, Message: err.Error()}
	}

	id := header.get(row, p.config.IDColumn)
	if id == "" {
		id = uuid.NewString()
	}

	episode := header.get(row, p.config.EpisodeColumn)
	if episode == "" {
		episode = meta.Episode
	}

	accountCode := header.get(row, p.config.AccountColumn)
	if accountCode == "" {
		accountCode = meta.Account
	}

	return &models.Transaction{
		ID:          id,
		SourceFile:  meta.sourceName(),
		Description: description,
		Vendor:      header.get(row, p.config.VendorColumn),
		Amount:      amount,
		AccountCode: accountCode,
		Episode:     episode,
		ReportDate:  meta.ReportDate,
	}, nil
}

func (m FileMetadata) sourceName() string {
	return fmt.Sprintf("%s/%s", m.Episode, m.ReportDate.Format("2006-01-02"))
}

// sniffFormat routes a file to the right front end by extension.
func sniffFormat(path string) string {
	switch strings.ToLower(strings.TrimPrefix(strings.ToLower(pathExt(path)), ".")) {
	case "xlsx", "xlsm":
		return "xlsx"
	case "pdf":
		return "pdf"
	default:
		return "csv"
	}
}

func pathExt(path string) string {
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		return path[idx:]
	}
	return ""
}

// Parse dispatches on the file extension: CSV, XLSX workbook, or
// text-layer PDF.
func (p *LedgerParser) Parse(path string) ([]*models.Transaction, *ParseStats, error) {
	switch sniffFormat(path) {
	case "xlsx":
		return p.ParseXLSX(path)
	case "pdf":
		return p.ParsePDF(path)
	default:
		return p.ParseCSV(path)
	}
}
