package parsers

import (
	"encoding/csv"
	"io"
	"os"

	"ledger-location-reconciler/internal/models"
	apperrors "ledger-location-reconciler/pkg/errors"
	"ledger-location-reconciler/pkg/logger"
)

var poColumnAliases = map[string]string{
	"po":        "po_number",
	"po_no":     "po_number",
	"number":    "po_number",
	"id":        "po_number",
	"payee":     "vendor",
	"supplier":  "vendor",
	"amt":       "amount",
	"value":     "amount",
	"total":     "amount",
	"state":     "status",
	"po_status": "status",
}

// ParsePurchaseOrders loads open-commitment purchase orders from a CSV
// file. A missing or empty path degrades to no purchase orders: the
// summary simply reports zero committed spend.
func ParsePurchaseOrders(path string) ([]*models.PurchaseOrder, *ParseStats, error) {
	log := logger.WithComponent("parsers")

	if path == "" {
		return nil, &ParseStats{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("file", path).Warn("purchase order file not found, continuing without POs")
			return nil, &ParseStats{File: path}, nil
		}
		return nil, nil, apperrors.FileError(apperrors.CodeFilePermission, path, err)
	}
	defer f.Close()

	stats := &ParseStats{File: path}
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var header *headerIndex
	var orders []*models.PurchaseOrder
	line := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, apperrors.ParseError(apperrors.CodeInvalidFormat, path, 0, err.Error(), err)
		}

		line++
		if line == 1 {
			header = buildHeaderIndex(record, poColumnAliases)
			if err := header.requireColumns(path, "amount"); err != nil {
				return nil, stats, err
			}
			continue
		}
		stats.TotalRows++

		amountStr := header.get(record, "amount")
		if amountStr == "" {
			continue
		}
		amount, err := models.ParseDecimalFromString(amountStr)
		if err != nil {
			stats.recordError(&RowError{Line: line, Field: "amount", Value: amountStr, Message: err.Error()})
			continue
		}

		orders = append(orders, &models.PurchaseOrder{
			ID:     header.get(record, "po_number"),
			Vendor: header.get(record, "vendor"),
			Amount: amount,
			Status: header.get(record, "status"),
		})
		stats.ParsedRows++
	}

	log.WithFields(logger.Fields{
		"file":   path,
		"parsed": stats.ParsedRows,
	}).Info("purchase orders loaded")

	return orders, stats, nil
}
