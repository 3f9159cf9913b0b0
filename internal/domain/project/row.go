package project

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ColumnSiteCode       = "Site Code"
	ColumnProjectName    = "Project Name"
	ColumnSiteName       = "Site Name"
	ColumnBarangay       = "Barangay"
	ColumnMunicipality   = "Municipality"
	ColumnProvince       = "Province"
	ColumnDistrict       = "District"
	ColumnLatitude       = "Latitude"
	ColumnLongitude      = "Longitude"
	ColumnActivationDate = "Date of Activation"
	ColumnStatus         = "Status"
)

// RequiredColumns must all be present in an upload header.
var RequiredColumns = []string{
	ColumnSiteCode,
	ColumnProjectName,
	ColumnSiteName,
	ColumnMunicipality,
	ColumnProvince,
	ColumnLatitude,
	ColumnLongitude,
	ColumnActivationDate,
	ColumnStatus,
}

var OptionalColumns = []string{ColumnBarangay, ColumnDistrict}

// TemplateColumns is the header order of the downloadable import template.
var TemplateColumns = []string{
	ColumnSiteCode,
	ColumnProjectName,
	ColumnSiteName,
	ColumnBarangay,
	ColumnMunicipality,
	ColumnProvince,
	ColumnDistrict,
	ColumnLatitude,
	ColumnLongitude,
	ColumnActivationDate,
	ColumnStatus,
}

type ResolvedIDs struct {
	ProjectTypeID  int64
	ProvinceID     int64
	MunicipalityID int64
	BarangayID     *int64
	DistrictID     *int64
}

type ParsedRow struct {
	RowNumber      int
	SiteCode       string
	ProjectName    string
	SiteName       string
	Barangay       string
	Municipality   string
	Province       string
	District       string
	Latitude       string
	Longitude      string
	ActivationDate string
	Status         string

	Resolved *ResolvedIDs
}

func (r ParsedRow) NaturalKey() string {
	return NormalizeSiteCode(r.SiteCode)
}

type ValidatedRow struct {
	Latitude       decimal.Decimal
	Longitude      decimal.Decimal
	ActivationDate time.Time
	Status         SiteStatus
}

// ToSite combines a validated and resolved row into the record to store.
func (r ParsedRow) ToSite(valid ValidatedRow, ids ResolvedIDs, createdBy *string) ProjectSite {
	return ProjectSite{
		SiteCode:       r.NaturalKey(),
		SiteName:       collapseSpaces(r.SiteName),
		ProjectTypeID:  ids.ProjectTypeID,
		ProvinceID:     ids.ProvinceID,
		MunicipalityID: ids.MunicipalityID,
		BarangayID:     ids.BarangayID,
		DistrictID:     ids.DistrictID,
		Latitude:       valid.Latitude,
		Longitude:      valid.Longitude,
		ActivationDate: valid.ActivationDate,
		Status:         valid.Status,
		CreatedBy:      createdBy,
	}
}

// Snapshot renders the incoming row for conflict reports. Unparseable values
// are carried through verbatim.
func (r ParsedRow) Snapshot() SiteSnapshot {
	snap := SiteSnapshot{
		SiteCode:       r.NaturalKey(),
		SiteName:       collapseSpaces(r.SiteName),
		ProjectType:    collapseSpaces(r.ProjectName),
		Province:       collapseSpaces(r.Province),
		Municipality:   collapseSpaces(r.Municipality),
		Barangay:       collapseSpaces(r.Barangay),
		District:       collapseSpaces(r.District),
		Latitude:       collapseSpaces(r.Latitude),
		Longitude:      collapseSpaces(r.Longitude),
		ActivationDate: collapseSpaces(r.ActivationDate),
		Status:         collapseSpaces(r.Status),
	}
	if lat, err := decimal.NewFromString(snap.Latitude); err == nil {
		snap.Latitude = lat.String()
	}
	if lng, err := decimal.NewFromString(snap.Longitude); err == nil {
		snap.Longitude = lng.String()
	}
	if date, ok := ParseActivationDate(snap.ActivationDate); ok {
		snap.ActivationDate = date.Format(DateLayout)
	}
	if status, ok := ParseSiteStatus(snap.Status); ok {
		snap.Status = string(status)
	}
	if r.Resolved != nil {
		snap.ProjectTypeID = int64Ptr(r.Resolved.ProjectTypeID)
		snap.ProvinceID = int64Ptr(r.Resolved.ProvinceID)
		snap.MunicipalityID = int64Ptr(r.Resolved.MunicipalityID)
		snap.BarangayID = r.Resolved.BarangayID
		snap.DistrictID = r.Resolved.DistrictID
	}
	return snap
}
