package project

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type SiteStatus string

const (
	SiteStatusPending    SiteStatus = "Pending"
	SiteStatusInProgress SiteStatus = "In Progress"
	SiteStatusDone       SiteStatus = "Done"
	SiteStatusCancelled  SiteStatus = "Cancelled"
	SiteStatusOnHold     SiteStatus = "On Hold"
)

var siteStatuses = []SiteStatus{
	SiteStatusPending,
	SiteStatusInProgress,
	SiteStatusDone,
	SiteStatusCancelled,
	SiteStatusOnHold,
}

// ParseSiteStatus matches raw input against the fixed status set, ignoring
// case and surrounding or repeated whitespace.
func ParseSiteStatus(raw string) (SiteStatus, bool) {
	needle := normalizeText(raw)
	for _, status := range siteStatuses {
		if normalizeText(string(status)) == needle {
			return status, true
		}
	}
	return "", false
}

type ProjectSite struct {
	ID             int64
	SiteCode       string
	SiteName       string
	ProjectTypeID  int64
	ProvinceID     int64
	MunicipalityID int64
	BarangayID     *int64
	DistrictID     *int64
	Latitude       decimal.Decimal
	Longitude      decimal.Decimal
	ActivationDate time.Time
	Status         SiteStatus
	CreatedBy      *string
	UpdatedAt      time.Time

	Names SiteNames
}

// SiteNames carries the reference names joined onto a stored site for display
// and name-level comparison.
type SiteNames struct {
	ProjectType  string
	Province     string
	Municipality string
	Barangay     string
	District     string
}

// SiteSnapshot is the comparable view of a site used in conflict reports.
type SiteSnapshot struct {
	SiteCode       string `json:"siteCode"`
	SiteName       string `json:"siteName"`
	ProjectType    string `json:"projectType,omitempty"`
	ProjectTypeID  *int64 `json:"projectTypeId"`
	Province       string `json:"province,omitempty"`
	ProvinceID     *int64 `json:"provinceId"`
	Municipality   string `json:"municipality,omitempty"`
	MunicipalityID *int64 `json:"municipalityId"`
	Barangay       string `json:"barangay,omitempty"`
	BarangayID     *int64 `json:"barangayId"`
	District       string `json:"district,omitempty"`
	DistrictID     *int64 `json:"districtId"`
	Latitude       string `json:"latitude"`
	Longitude      string `json:"longitude"`
	ActivationDate string `json:"activationDate"`
	Status         string `json:"status"`
}

const DateLayout = "2006-01-02"

func (s ProjectSite) Snapshot() SiteSnapshot {
	return SiteSnapshot{
		SiteCode:       s.SiteCode,
		SiteName:       s.SiteName,
		ProjectType:    s.Names.ProjectType,
		Province:       s.Names.Province,
		Municipality:   s.Names.Municipality,
		Barangay:       s.Names.Barangay,
		District:       s.Names.District,
		ProjectTypeID:  int64Ptr(s.ProjectTypeID),
		ProvinceID:     int64Ptr(s.ProvinceID),
		MunicipalityID: int64Ptr(s.MunicipalityID),
		BarangayID:     s.BarangayID,
		DistrictID:     s.DistrictID,
		Latitude:       s.Latitude.String(),
		Longitude:      s.Longitude.String(),
		ActivationDate: s.ActivationDate.Format(DateLayout),
		Status:         string(s.Status),
	}
}

func NormalizeSiteCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func normalizeText(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// EqualText compares two free-text values ignoring case and whitespace runs.
func EqualText(a, b string) bool {
	return normalizeText(a) == normalizeText(b)
}

func int64Ptr(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
