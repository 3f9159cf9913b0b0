package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	domain "github.com/mohammadpnp/site-import/internal/domain/project"
)

var errorReportHeader = []string{"Row Number", "Site Code", "Error Messages"}

// GenerateErrorReport renders row errors as CSV, one line per failed row.
func GenerateErrorReport(rowErrors []domain.RowError) ([]byte, error) {
	var buf bytes.Buffer
	writeQuotedRecord(&buf, errorReportHeader)
	for _, rowErr := range rowErrors {
		writeQuotedRecord(&buf, []string{
			strconv.Itoa(rowErr.RowNumber),
			neutralizeFormula(rowErr.SiteCode),
			neutralizeFormula(strings.Join(rowErr.Messages, "; ")),
		})
	}

	// Round-trip through the csv reader so a malformed report never ships.
	if _, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll(); err != nil {
		return nil, fmt.Errorf("render error report: %w", err)
	}
	return buf.Bytes(), nil
}

// TemplateCSV returns the header-only upload template.
func TemplateCSV() []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(domain.TemplateColumns)
	w.Flush()
	return buf.Bytes()
}

// writeQuotedRecord quotes every field. csv.Writer only quotes when needed.
func writeQuotedRecord(buf *bytes.Buffer, fields []string) {
	for i, field := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(field, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteString("\r\n")
}

func neutralizeFormula(cell string) string {
	if cell == "" {
		return cell
	}
	switch cell[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + cell
	}
	return cell
}
