package reconciler

import (
	"context"
	"sync"

	"ledger-location-reconciler/internal/extract"
	"ledger-location-reconciler/internal/models"
	"ledger-location-reconciler/internal/parsers"
	"ledger-location-reconciler/pkg/logger"
)

// fileResult carries one ledger file's parse outcome across the
// extraction fan-out.
type fileResult struct {
	path         string
	transactions []*models.Transaction
	stats        *parsers.ParseStats
	err          error
}

// extractAll parses every ledger file and runs description extraction
// over the rows. Files are independent, so they parse concurrently up
// to maxConcurrency; extraction stays per-file so each transaction is
// touched by exactly one goroutine.
func (s *Service) extractAll(ctx context.Context, files []string) ([]*models.Transaction, []*parsers.ParseStats, error) {
	ledgerParser, err := parsers.NewLedgerParser(s.config.Ledger)
	if err != nil {
		return nil, nil, err
	}

	concurrency := s.config.MaxConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(files) {
		concurrency = len(files)
	}

	jobs := make(chan string)
	results := make(chan fileResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				results <- s.extractFile(ledgerParser, path)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, path := range files {
			select {
			case jobs <- path:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	byFile := make(map[string]fileResult, len(files))
	for res := range results {
		byFile[res.path] = res
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	// Reassemble in the caller's file order so run output is stable
	// regardless of goroutine scheduling.
	var transactions []*models.Transaction
	var stats []*parsers.ParseStats
	for _, path := range files {
		res, ok := byFile[path]
		if !ok {
			continue
		}
		if res.err != nil {
			return nil, nil, res.err
		}
		transactions = append(transactions, res.transactions...)
		if res.stats != nil {
			stats = append(stats, res.stats)
		}
	}

	return transactions, stats, nil
}

// extractFile parses one ledger file and annotates each transaction
// with its date range, location candidate, and service token. The
// description is parsed exactly once here; later stages only read the
// extracted fields.
func (s *Service) extractFile(parser *parsers.LedgerParser, path string) fileResult {
	transactions, stats, err := parser.Parse(path)
	if err != nil {
		return fileResult{path: path, err: err}
	}

	dateExtractor := extract.NewDateExtractor(s.config.Dates)
	locationExtractor := extract.NewLocationExtractor()

	for _, tx := range transactions {
		tx.DateRange = dateExtractor.Extract(tx.Description, tx.ReportDate.Year())

		result := locationExtractor.Extract(tx.Description)
		tx.CandidateLocation = result.Candidate
		tx.ServiceToken = result.ServiceToken
	}

	s.log.WithFields(logger.Fields{
		"file":         path,
		"transactions": len(transactions),
	}).Debug("ledger file extracted")

	return fileResult{path: path, transactions: transactions, stats: stats}
}
