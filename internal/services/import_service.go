package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finances/internal/core"
	"finances/internal/csvimport"
	"finances/internal/log"
	"finances/internal/uploads"
)

// ErrStreamFailure marks imports that failed before anything was stored
// because the upload could not be opened, read or parsed.
var ErrStreamFailure = errors.New("import stream failed")

// CSV column order of an import file.
const (
	colTitle = iota
	colType
	colValue
	colCategory
)

// ImportResult summarises one committed import.
type ImportResult struct {
	Transactions      []core.Transaction
	Dropped           int
	CategoriesCreated int
}

// ImportService reconciles an uploaded CSV file into the ledger.
type ImportService struct {
	ledger  *Ledger
	uploads uploads.Source
	parser  csvimport.Parser
}

func NewImportService(ledger *Ledger, src uploads.Source) *ImportService {
	return &ImportService{
		ledger:  ledger,
		uploads: src,
		parser:  csvimport.DefaultParser(),
	}
}

// Import streams the named upload, drops malformed rows, stores the accepted
// rows in one batch and deletes the upload. On failure the upload is kept
// and nothing is stored.
func (s *ImportService) Import(ctx context.Context, fileName string) (ImportResult, error) {
	start := time.Now()
	logger := slog.With(log.FieldComponent, log.ComponentImport, log.FieldFileName, fileName)

	records, dropped, err := s.collect(ctx, fileName)
	if err != nil {
		logger.ErrorContext(ctx, "Import aborted while streaming", log.FieldError, err)
		return ImportResult{}, err
	}
	logger.InfoContext(ctx, "Import collected",
		log.FieldRowsAccepted, len(records),
		log.FieldRowsDropped, dropped)

	var res ImportResult
	res.Dropped = dropped
	if len(records) > 0 {
		ts, created, err := s.ledger.createMany(ctx, records)
		if err != nil {
			logger.ErrorContext(ctx, "Import aborted while committing", log.FieldError, err)
			return ImportResult{}, fmt.Errorf("commit import %s: %w", fileName, err)
		}
		res.Transactions = ts
		res.CategoriesCreated = len(created)
	}

	// The batch is committed; a failed cleanup must not make callers retry it.
	if err := s.uploads.Delete(ctx, fileName); err != nil {
		logger.WarnContext(ctx, "Failed to delete imported upload", log.FieldError, err)
	}

	logger.InfoContext(ctx, "Import completed",
		log.FieldCount, len(res.Transactions),
		log.FieldCategoriesCreated, res.CategoriesCreated,
		log.FieldRowsDropped, res.Dropped,
		log.FieldDuration, time.Since(start).Milliseconds())
	return res, nil
}

// collect streams the upload to completion and returns the accepted rows.
func (s *ImportService) collect(ctx context.Context, fileName string) ([]NewTransaction, int, error) {
	rc, err := s.uploads.Open(ctx, fileName)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrStreamFailure, err)
	}
	defer rc.Close()

	var (
		records []NewTransaction
		dropped int
	)
	err = s.parser.Stream(ctx, rc, func(row csvimport.Row) error {
		n, reason := rowToRecord(row)
		if reason != "" {
			dropped++
			slog.DebugContext(ctx, "Import row dropped",
				log.FieldComponent, log.ComponentImport,
				log.FieldFileName, fileName,
				log.FieldLine, row.Line,
				log.FieldReason, reason)
			return nil
		}
		records = append(records, n)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("%w: %w", ErrStreamFailure, err)
	}
	return records, dropped, nil
}

// rowToRecord converts one data row, or returns why it was dropped.
func rowToRecord(row csvimport.Row) (NewTransaction, string) {
	title := row.Cell(colTitle)
	rawType := row.Cell(colType)
	rawValue := row.Cell(colValue)
	if title == "" || rawType == "" || rawValue == "" {
		return NewTransaction{}, "missing field"
	}

	typ, err := core.ParseTransactionType(rawType)
	if err != nil {
		return NewTransaction{}, "unknown type"
	}
	value, err := core.ParseValue(rawValue)
	if err != nil {
		return NewTransaction{}, "invalid value"
	}

	n := NewTransaction{
		Title:         title,
		Value:         value,
		Type:          typ,
		CategoryTitle: row.Cell(colCategory),
	}
	if err := n.record().Validate(); err != nil {
		return NewTransaction{}, err.Error()
	}
	return n, ""
}
