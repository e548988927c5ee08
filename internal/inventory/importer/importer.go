// Package importer decodes CSV uploads into reconciler rows.
//
// The first record is a header. Columns are matched case-insensitively and
// in any order; unknown columns are ignored. Data rows are numbered from 1.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
)

// ErrMissingHeader is returned for an input without a header record
var ErrMissingHeader = errors.New("csv input has no header row")

// Column aliases accepted in headers, by canonical column
var aliases = map[string][]string{
	"sku":           {"sku"},
	"name":          {"name", "product_name"},
	"category":      {"category"},
	"supplier":      {"supplier"},
	"price":         {"price"},
	"reorder_point": {"reorder_point", "reorderpoint"},
	"quantity":      {"quantity", "stock", "transaction_quantity", "transactionquantity"},
	"depot_name":    {"depot_name", "depotname", "depot"},
	"location":      {"location", "depot_location", "depotlocation"},
	"type":          {"type", "transaction_type", "transactiontype"},
	"date":          {"date", "transaction_date", "transactiondate"},
	"reason":        {"reason", "transaction_reason", "transactionreason"},
	"notes":         {"notes"},
}

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

// DecodeRows reads product rows. Records that cannot be parsed are
// returned as row errors; the error result is reserved for unreadable input.
func DecodeRows(r io.Reader) ([]service.RowInput, []service.RowError, error) {
	var rows []service.RowInput
	failures, err := decode(r, func(row int, rec record) error {
		in := service.RowInput{
			Row:       row,
			SKU:       rec.get("sku"),
			Name:      rec.get("name"),
			Category:  rec.get("category"),
			Supplier:  rec.get("supplier"),
			DepotName: rec.get("depot_name"),
			Location:  rec.get("location"),
		}
		var err error
		if in.Price, err = rec.decimalField("price"); err != nil {
			return err
		}
		if in.ReorderPoint, err = rec.intField("reorder_point"); err != nil {
			return err
		}
		qty, err := rec.intField("quantity")
		if err != nil {
			return err
		}
		if qty != nil {
			in.Quantity = *qty
		}
		rows = append(rows, in)
		return nil
	})
	return rows, failures, err
}

// DecodeHistory reads transaction history rows
func DecodeHistory(r io.Reader) ([]service.HistoryRow, []service.RowError, error) {
	var rows []service.HistoryRow
	failures, err := decode(r, func(row int, rec record) error {
		in := service.HistoryRow{
			Row:       row,
			SKU:       rec.get("sku"),
			Name:      rec.get("name"),
			Category:  rec.get("category"),
			Supplier:  rec.get("supplier"),
			Type:      domain.TransactionType(strings.ToLower(rec.get("type"))),
			DepotName: rec.get("depot_name"),
			Location:  rec.get("location"),
			Reason:    rec.get("reason"),
			Notes:     domain.StringPtr(rec.get("notes")),
		}
		var err error
		if in.Price, err = rec.decimalField("price"); err != nil {
			return err
		}
		if in.ReorderPoint, err = rec.intField("reorder_point"); err != nil {
			return err
		}
		qty, err := rec.intField("quantity")
		if err != nil {
			return err
		}
		if qty != nil {
			in.Quantity = *qty
		}
		if in.Date, err = rec.timeField("date"); err != nil {
			return err
		}
		rows = append(rows, in)
		return nil
	})
	return rows, failures, err
}

func decode(r io.Reader, emit func(row int, rec record) error) ([]service.RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	columns := indexHeader(header)

	var failures []service.RowError
	for row := 1; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return failures, nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			failures = append(failures, service.RowError{Row: row, Error: parseErr.Err.Error()})
			continue
		}
		if err != nil {
			return failures, fmt.Errorf("failed to read csv row %d: %w", row, err)
		}
		if len(fields) != len(header) {
			failures = append(failures, service.RowError{
				Row:   row,
				Error: fmt.Sprintf("expected %d fields, got %d", len(header), len(fields)),
			})
			continue
		}

		rec := record{columns: columns, fields: fields}
		if err := emit(row, rec); err != nil {
			failures = append(failures, service.RowError{Row: row, SKU: rec.get("sku"), Error: err.Error()})
		}
	}
}

func indexHeader(header []string) map[string]int {
	byAlias := make(map[string]string)
	for canonical, names := range aliases {
		for _, n := range names {
			byAlias[n] = canonical
		}
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		key = strings.ReplaceAll(key, " ", "_")
		if canonical, ok := byAlias[key]; ok {
			if _, seen := columns[canonical]; !seen {
				columns[canonical] = i
			}
		}
	}
	return columns
}

type record struct {
	columns map[string]int
	fields  []string
}

func (r record) get(column string) string {
	i, ok := r.columns[column]
	if !ok {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r record) intField(column string) (*int64, error) {
	v := r.get(column)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a whole number", column, v)
	}
	return &n, nil
}

func (r record) decimalField(column string) (*decimal.Decimal, error) {
	v := r.get(column)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a number", column, v)
	}
	return &d, nil
}

func (r record) timeField(column string) (time.Time, error) {
	v := r.get(column)
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%s: %q is not a date", column, v)
}
