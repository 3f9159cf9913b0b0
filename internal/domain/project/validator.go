package project

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Site codes look like PREFIX-TYPE-NUMBER with an optional letter suffix,
// e.g. PH-CCTV-0012B.
var siteCodePattern = regexp.MustCompile(`^[A-Z]+-[A-Z]+-[0-9]+[A-Z]?$`)

var activationDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"02-Jan-2006",
	"2-Jan-2006",
}

var (
	minLatitude  = decimal.NewFromInt(-90)
	maxLatitude  = decimal.NewFromInt(90)
	minLongitude = decimal.NewFromInt(-180)
	maxLongitude = decimal.NewFromInt(180)
)

// ValidateRow runs every structural check against a row and returns all
// violated rules. An empty message list means the row is valid.
func ValidateRow(row ParsedRow) (ValidatedRow, []string) {
	var (
		out      ValidatedRow
		messages []string
	)

	code := row.NaturalKey()
	switch {
	case code == "":
		messages = append(messages, "Site Code is required")
	case !siteCodePattern.MatchString(code):
		messages = append(messages, fmt.Sprintf("Site Code %q must match PREFIX-TYPE-NUMBER[SUFFIX]", strings.TrimSpace(row.SiteCode)))
	}

	required := []struct {
		column string
		value  string
	}{
		{ColumnProjectName, row.ProjectName},
		{ColumnSiteName, row.SiteName},
		{ColumnProvince, row.Province},
		{ColumnMunicipality, row.Municipality},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			messages = append(messages, field.column+" is required")
		}
	}

	lat, msg := parseCoordinate(ColumnLatitude, row.Latitude, minLatitude, maxLatitude)
	if msg != "" {
		messages = append(messages, msg)
	}
	out.Latitude = lat

	lng, msg := parseCoordinate(ColumnLongitude, row.Longitude, minLongitude, maxLongitude)
	if msg != "" {
		messages = append(messages, msg)
	}
	out.Longitude = lng

	rawDate := strings.TrimSpace(row.ActivationDate)
	if rawDate == "" {
		messages = append(messages, ColumnActivationDate+" is required")
	} else if date, ok := ParseActivationDate(rawDate); ok {
		out.ActivationDate = date
	} else {
		messages = append(messages, fmt.Sprintf("%s %q is not a valid date", ColumnActivationDate, rawDate))
	}

	if status, ok := ParseSiteStatus(row.Status); ok {
		out.Status = status
	} else {
		messages = append(messages, fmt.Sprintf("Status %q must be one of %s", strings.TrimSpace(row.Status), statusList()))
	}

	return out, messages
}

func ParseActivationDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range activationDateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func parseCoordinate(column, raw string, lower, upper decimal.Decimal) (decimal.Decimal, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, column + " is required"
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Sprintf("%s %q is not a number", column, raw)
	}
	if value.LessThan(lower) || value.GreaterThan(upper) {
		return decimal.Zero, fmt.Sprintf("%s %s must be between %s and %s", column, value.String(), lower.String(), upper.String())
	}
	return value, ""
}

func statusList() string {
	names := make([]string, 0, len(siteStatuses))
	for _, status := range siteStatuses {
		names = append(names, string(status))
	}
	return strings.Join(names, ", ")
}

func collapseSpaces(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
