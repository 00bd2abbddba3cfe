// Package csvimport streams rows out of delimited text.
//
// Rows are produced by one goroutine and handed, in order, to a caller
// supplied function running in a second goroutine. Stream only returns after
// the producer has hit end of input and every produced row has been handled,
// so a nil return is the "stream ended" signal and no row can arrive after it.
package csvimport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Row is one data row with every cell trimmed.
type Row struct {
	Line  int
	Cells []string
}

// Cell returns the i-th cell, or "" when the row is shorter.
func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i]
}

// ParseError reports malformed delimited text.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse csv at line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parser configures how input is split into rows.
type Parser struct {
	// SkipRows is the number of leading records dropped, e.g. 1 for a header.
	SkipRows int
	// Comma is the field delimiter; zero means ','.
	Comma rune
	// Buffer is the number of rows that may be in flight between producer
	// and consumer.
	Buffer int
}

// DefaultParser skips one header row of comma separated values.
func DefaultParser() Parser {
	return Parser{SkipRows: 1, Comma: ',', Buffer: 64}
}

// Stream reads r to the end and calls fn for every data row in input order.
// It returns nil once the input is exhausted and fn has returned for every
// row, a *ParseError for malformed input, a read error from r, or the first
// error returned by fn.
func (p Parser) Stream(ctx context.Context, r io.Reader, fn func(Row) error) error {
	g, ctx := errgroup.WithContext(ctx)
	rows := make(chan Row, max(p.Buffer, 0))

	g.Go(func() error {
		defer close(rows)
		return p.produce(ctx, r, rows)
	})

	g.Go(func() error {
		for row := range rows {
			if err := fn(row); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

// ReadAll collects every data row. Convenient for small inputs and tests.
func (p Parser) ReadAll(ctx context.Context, r io.Reader) ([]Row, error) {
	var out []Row
	err := p.Stream(ctx, r, func(row Row) error {
		out = append(out, row)
		return nil
	})
	return out, err
}

func (p Parser) produce(ctx context.Context, r io.Reader, rows chan<- Row) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = false
	if p.Comma != 0 {
		reader.Comma = p.Comma
	}

	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return &ParseError{Line: pe.Line, Err: pe.Err}
			}
			return fmt.Errorf("read csv: %w", err)
		}
		if index < p.SkipRows {
			continue
		}

		line, _ := reader.FieldPos(0)
		row := Row{Line: line, Cells: make([]string, len(record))}
		for i, cell := range record {
			row.Cells[i] = strings.TrimSpace(cell)
		}

		select {
		case rows <- row:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
