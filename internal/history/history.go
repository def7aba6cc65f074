// Package history reads archived tick files: one CSV (optionally
// gzip-compressed) per symbol per calendar day, laid out as
// {dir}/{symbol}/{YYYY-MM-DD}.csv[.gz]. Files hold one trade print per
// row in time order.
package history

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"orderflow-lab/internal/domain"
)

// ErrNoData is returned when no tick file exists for a symbol and date.
var ErrNoData = errors.New("no tick data for date")

// DateLayout is the calendar-day format used in file names and the
// completion ledger.
const DateLayout = "2006-01-02"

// Column names recognized in a header row, lowercased. Venue exports
// name the aggressor side column "side" and the id "trdMatchID".
var (
	timestampCols = map[string]bool{"timestamp": true, "ts": true, "time": true}
	symbolCols    = map[string]bool{"symbol": true, "s": true}
	sideCols      = map[string]bool{"side": true}
	sizeCols      = map[string]bool{"size": true, "qty": true, "volume": true, "v": true}
	priceCols     = map[string]bool{"price": true, "p": true}
	idCols        = map[string]bool{"trdmatchid": true, "trade_id": true, "id": true, "i": true}
)

// Columns without a header row follow the venue export order.
var defaultColumns = columnMap{timestamp: 0, symbol: 1, side: 2, size: 3, price: 4, id: -1}

type columnMap struct {
	timestamp int
	symbol    int
	side      int
	size      int
	price     int
	id        int // -1 when absent; a synthetic row id is used instead
}

// DayReader streams one day's trade prints. Malformed rows are skipped
// and counted, matching the live feed's skip-don't-fail validation.
type DayReader struct {
	symbol string
	date   string

	file    *os.File
	gz      *gzip.Reader
	csv     *csv.Reader
	cols    columnMap
	started bool
	rowNum  int
	skipped int
}

// OpenDay opens the tick file for a symbol and date, preferring the
// compressed variant. Returns ErrNoData when neither file exists.
func OpenDay(dir, symbol, date string) (*DayReader, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	base := filepath.Join(dir, symbol, date)
	r := &DayReader{symbol: symbol, date: date}

	for _, ext := range []string{".csv.gz", ".csv"} {
		f, err := os.Open(base + ext)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("open tick file: %w", err)
		}
		r.file = f

		var reader io.Reader = f
		if ext == ".csv.gz" {
			gz, err := gzip.NewReader(f)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("open gzip tick file: %w", err)
			}
			r.gz = gz
			reader = gz
		}

		r.csv = csv.NewReader(reader)
		r.csv.FieldsPerRecord = -1
		return r, nil
	}

	return nil, fmt.Errorf("%w: %s %s", ErrNoData, symbol, date)
}

// Next returns the next valid trade, or io.EOF after the last row.
func (r *DayReader) Next() (domain.Trade, error) {
	for {
		record, err := r.csv.Read()
		if err != nil {
			if err == io.EOF {
				return domain.Trade{}, io.EOF
			}
			return domain.Trade{}, fmt.Errorf("read tick row: %w", err)
		}
		r.rowNum++

		if !r.started {
			r.started = true
			if cols, ok := detectHeader(record); ok {
				r.cols = cols
				continue
			}
			r.cols = defaultColumns
		}

		trade, ok := r.parseRow(record)
		if !ok {
			r.skipped++
			continue
		}
		return trade, nil
	}
}

// Skipped returns how many rows were dropped by validation so far.
func (r *DayReader) Skipped() int {
	return r.skipped
}

// Close releases the underlying file handles.
func (r *DayReader) Close() error {
	var firstErr error
	if r.gz != nil {
		firstErr = r.gz.Close()
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// detectHeader maps column names when the first row is a header. A row
// whose timestamp-named field exists is a header; data rows start with a
// number.
func detectHeader(record []string) (columnMap, bool) {
	cols := columnMap{timestamp: -1, symbol: -1, side: -1, size: -1, price: -1, id: -1}
	found := false
	for i, field := range record {
		name := strings.ToLower(strings.TrimSpace(field))
		switch {
		case timestampCols[name]:
			cols.timestamp = i
			found = true
		case symbolCols[name]:
			cols.symbol = i
		case sideCols[name]:
			cols.side = i
		case sizeCols[name]:
			cols.size = i
		case priceCols[name]:
			cols.price = i
		case idCols[name]:
			cols.id = i
		}
	}
	if !found || cols.side < 0 || cols.size < 0 || cols.price < 0 {
		return columnMap{}, false
	}
	return cols, true
}

// parseRow converts one data row, applying the same validation as the
// live trade feed: unknown side, non-positive size or price, and
// unparseable timestamps drop the row.
func (r *DayReader) parseRow(record []string) (domain.Trade, bool) {
	field := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var side domain.TradeSide
	switch strings.ToLower(field(r.cols.side)) {
	case "buy":
		side = domain.SideBuy
	case "sell":
		side = domain.SideSell
	default:
		return domain.Trade{}, false
	}

	price, err := strconv.ParseFloat(field(r.cols.price), 64)
	if err != nil || price <= 0 {
		return domain.Trade{}, false
	}
	size, err := strconv.ParseFloat(field(r.cols.size), 64)
	if err != nil || size <= 0 {
		return domain.Trade{}, false
	}

	tsMs, ok := parseTimestampMs(field(r.cols.timestamp))
	if !ok {
		return domain.Trade{}, false
	}

	symbol := field(r.cols.symbol)
	if symbol == "" {
		symbol = r.symbol
	}

	tradeID := field(r.cols.id)
	if tradeID == "" {
		tradeID = fmt.Sprintf("%s:%d", r.date, r.rowNum)
	}

	return domain.Trade{
		TradeID:     tradeID,
		Symbol:      symbol,
		Price:       price,
		Size:        size,
		Side:        side,
		TimestampMs: tsMs,
	}, true
}

// parseTimestampMs accepts epoch seconds (possibly fractional, as venue
// archives use) or epoch milliseconds.
func parseTimestampMs(s string) (int64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	// Millisecond epochs are 13 digits; second epochs are 10. Rounding
	// absorbs the float representation error of fractional seconds.
	if v >= 1e12 {
		return int64(math.Round(v)), true
	}
	return int64(math.Round(v * 1000)), true
}

// DatesBetween expands an inclusive [from, to] day range into the list
// of calendar days. Errors when the range is malformed or inverted.
func DatesBetween(from, to string) ([]string, error) {
	start, err := time.Parse(DateLayout, from)
	if err != nil {
		return nil, fmt.Errorf("invalid from date %q: %w", from, err)
	}
	end, err := time.Parse(DateLayout, to)
	if err != nil {
		return nil, fmt.Errorf("invalid to date %q: %w", to, err)
	}
	if start.After(end) {
		return nil, fmt.Errorf("from date %s after to date %s", from, to)
	}

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates, nil
}
