// Package parsers turns ledger exports, budget workbooks, alias tables,
// and purchase-order lists into the pipeline's record types. Ledger
// files arrive as CSV, XLSX workbooks, or text-layer PDFs; the three
// front ends normalize to the same row shape before record building.
//
// Malformed rows never abort a run: each parser records a per-line
// error and a skip counter and keeps going, matching how the rest of
// the pipeline degrades field by field rather than failing whole runs.
package parsers

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	apperrors "ledger-location-reconciler/pkg/errors"
)

// RowError is an error tied to one row of an input file.
type RowError struct {
	Line    int
	Field   string
	Value   string
	Message string
}

// Error implements the error interface.
func (e *RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("line %d, field %q: %s (value: %q)", e.Line, e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ParseStats summarizes one file's parse.
type ParseStats struct {
	File         string      `json:"file"`
	TotalRows    int         `json:"total_rows"`
	ParsedRows   int         `json:"parsed_rows"`
	SkippedRows  int         `json:"skipped_rows"`
	RowErrors    []*RowError `json:"row_errors,omitempty"`
	ParseSeconds float64     `json:"parse_seconds"`
}

func (s *ParseStats) recordError(err *RowError) {
	s.SkippedRows++
	// Cap retained errors so a systematically-broken file does not
	// balloon the diagnostics.
	if len(s.RowErrors) < 50 {
		s.RowErrors = append(s.RowErrors, err)
	}
}

// headerIndex maps configured column names (with aliases) onto the
// positions found in a header row. Lookup is case-insensitive on
// trimmed, space-collapsed names.
type headerIndex struct {
	positions map[string]int
}

func buildHeaderIndex(header []string, aliases map[string]string) *headerIndex {
	idx := &headerIndex{positions: make(map[string]int, len(header))}
	for pos, name := range header {
		key := normalizeHeader(name)
		if key == "" {
			continue
		}
		if canonical, ok := aliases[key]; ok {
			key = canonical
		}
		if _, exists := idx.positions[key]; !exists {
			idx.positions[key] = pos
		}
	}
	return idx
}

func normalizeHeader(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.TrimSpace(name)), "_"))
}

// get returns the trimmed cell under the named column, or "".
func (hi *headerIndex) get(row []string, column string) string {
	pos, ok := hi.positions[column]
	if !ok || pos >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[pos])
}

// has reports whether the header carries the named column.
func (hi *headerIndex) has(column string) bool {
	_, ok := hi.positions[column]
	return ok
}

// requireColumns verifies the header carries every required column.
func (hi *headerIndex) requireColumns(file string, columns ...string) error {
	for _, column := range columns {
		if !hi.has(column) {
			return apperrors.ParseError(apperrors.CodeMissingColumn, file, 1, column, nil)
		}
	}
	return nil
}

// FileMetadata is derived from a ledger file's name: the report date
// the description dates are resolved against, the episode tag, and an
// optional account segment.
type FileMetadata struct {
	ReportDate time.Time
	Episode    string
	Account    string
}

var (
	fileDateRe    = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	fileEpisodeRe = regexp.MustCompile(`(?i)(?:^|[-_ ])(?:episode|ep)[-_ ]?([a-z0-9]+)`)
	fileAccountRe = regexp.MustCompile(`(?i)(?:^|[-_ ])acct[-_ ]?([a-z0-9]+)`)
)

// ParseFileMetadata derives report date, episode, and account from a
// file name such as "ledger_2025-10-15_ep101.csv". Missing pieces
// degrade: the report date falls back to now, the episode to "unknown".
func ParseFileMetadata(path string) FileMetadata {
	base := filepath.Base(path)
	meta := FileMetadata{ReportDate: time.Now().UTC(), Episode: "unknown"}

	if m := fileDateRe.FindStringSubmatch(base); m != nil {
		if t, err := time.Parse("2006-01-02", m[1]+"-"+m[2]+"-"+m[3]); err == nil {
			meta.ReportDate = t
		}
	}
	if m := fileEpisodeRe.FindStringSubmatch(base); m != nil {
		meta.Episode = m[1]
	}
	if m := fileAccountRe.FindStringSubmatch(base); m != nil {
		meta.Account = m[1]
	}

	return meta
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, apperrors.FileError(apperrors.CodeFilePermission, path, err)
		}
		return nil, apperrors.FileError(apperrors.CodeFileCorrupted, path, err)
	}
	return f, nil
}
