package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	domain "github.com/mohammadpnp/site-import/internal/domain/project"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// MissingColumnsError rejects an upload whose header lacks required columns.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}

func (e *MissingColumnsError) Unwrap() error {
	return ErrMissingColumns
}

// ParseCSV decodes an upload into rows in file order. Row numbers are 1-based
// and exclude the header. A UTF-8 or UTF-16 byte order mark is honored.
func ParseCSV(r io.Reader, maxRows int) ([]domain.ParsedRow, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = false

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	columns, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.ParsedRow, 0, 256)
	rowNumber := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
		}
		rowNumber++
		if isBlankRecord(record) {
			continue
		}
		if maxRows > 0 && len(rows) >= maxRows {
			return nil, fmt.Errorf("%w: more than %d rows", ErrTooManyRows, maxRows)
		}

		field := func(column string) string {
			idx, ok := columns[column]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		rows = append(rows, domain.ParsedRow{
			RowNumber:      rowNumber,
			SiteCode:       field(domain.ColumnSiteCode),
			ProjectName:    field(domain.ColumnProjectName),
			SiteName:       field(domain.ColumnSiteName),
			Barangay:       field(domain.ColumnBarangay),
			Municipality:   field(domain.ColumnMunicipality),
			Province:       field(domain.ColumnProvince),
			District:       field(domain.ColumnDistrict),
			Latitude:       field(domain.ColumnLatitude),
			Longitude:      field(domain.ColumnLongitude),
			ActivationDate: field(domain.ColumnActivationDate),
			Status:         field(domain.ColumnStatus),
		})
	}

	return rows, nil
}

func mapColumns(header []string) (map[string]int, error) {
	known := make(map[string]string, len(domain.RequiredColumns)+len(domain.OptionalColumns))
	for _, column := range domain.RequiredColumns {
		known[headerKey(column)] = column
	}
	for _, column := range domain.OptionalColumns {
		known[headerKey(column)] = column
	}

	columns := make(map[string]int, len(header))
	for i, raw := range header {
		column, ok := known[headerKey(raw)]
		if !ok {
			continue
		}
		if _, seen := columns[column]; !seen {
			columns[column] = i
		}
	}

	var missing []string
	for _, column := range domain.RequiredColumns {
		if _, ok := columns[column]; !ok {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}
	return columns, nil
}

func headerKey(raw string) string {
	raw = strings.TrimPrefix(raw, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

func isBlankRecord(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
