package importer

import (
	"context"
	"fmt"

	domain "github.com/mohammadpnp/site-import/internal/domain/project"
	"github.com/shopspring/decimal"
)

const (
	FieldSiteName       = "site_name"
	FieldProjectType    = "project_type"
	FieldProvince       = "province"
	FieldMunicipality   = "municipality"
	FieldBarangay       = "barangay"
	FieldDistrict       = "district"
	FieldLatitude       = "latitude"
	FieldLongitude      = "longitude"
	FieldActivationDate = "activation_date"
	FieldStatus         = "status"
)

type SiteFinder interface {
	FindByCodes(ctx context.Context, codes []string) (map[string]domain.ProjectSite, error)
}

type DetectionResult struct {
	Conflicts  []domain.Conflict
	NewEntries []domain.ParsedRow
}

// ConflictDetector partitions rows by whether a stored site already uses the
// row's site code. It only reads, so repeated calls on unchanged data agree.
// Conflicting rows are resolved against the reference cache before comparison.
type ConflictDetector struct {
	sites SiteFinder
	refs  referenceResolver
}

func NewConflictDetector(sites SiteFinder, refs referenceResolver) *ConflictDetector {
	return &ConflictDetector{sites: sites, refs: refs}
}

func (d *ConflictDetector) Detect(ctx context.Context, rows []domain.ParsedRow) (DetectionResult, error) {
	if err := d.refs.RefreshIfStale(ctx); err != nil {
		return DetectionResult{}, fmt.Errorf("load reference data: %w", err)
	}

	existing, err := d.sites.FindByCodes(ctx, naturalKeys(rows))
	if err != nil {
		return DetectionResult{}, fmt.Errorf("find existing sites: %w", err)
	}

	result := DetectionResult{
		Conflicts:  make([]domain.Conflict, 0),
		NewEntries: make([]domain.ParsedRow, 0, len(rows)),
	}
	for _, row := range rows {
		site, ok := existing[row.NaturalKey()]
		if row.NaturalKey() == "" || !ok {
			result.NewEntries = append(result.NewEntries, row)
			continue
		}
		ids, _ := d.refs.Resolve(row)
		row.Resolved = &ids
		result.Conflicts = append(result.Conflicts, BuildConflict(site, row))
	}
	return result, nil
}

func BuildConflict(existing domain.ProjectSite, row domain.ParsedRow) domain.Conflict {
	differing := DiffSite(existing, row)
	kind := domain.ConflictExact
	if len(differing) > 0 {
		kind = domain.ConflictPotential
	}
	return domain.Conflict{
		RowNumber:       row.RowNumber,
		SiteCode:        row.NaturalKey(),
		Kind:            kind,
		DifferingFields: differing,
		Existing:        existing.Snapshot(),
		Incoming:        row.Snapshot(),
	}
}

// DiffSite lists the business fields whose incoming value differs from the
// stored one, in a fixed order. Reference fields are compared by id when the
// row has been resolved and by name otherwise.
func DiffSite(existing domain.ProjectSite, row domain.ParsedRow) []string {
	differing := make([]string, 0)
	add := func(field string, equal bool) {
		if !equal {
			differing = append(differing, field)
		}
	}

	ids := row.Resolved
	add(FieldSiteName, domain.EqualText(existing.SiteName, row.SiteName))

	if ids != nil {
		add(FieldProjectType, existing.ProjectTypeID == ids.ProjectTypeID)
		add(FieldProvince, existing.ProvinceID == ids.ProvinceID)
		add(FieldMunicipality, existing.MunicipalityID == ids.MunicipalityID)
		add(FieldBarangay, equalOptionalID(existing.BarangayID, ids.BarangayID))
		add(FieldDistrict, equalOptionalID(existing.DistrictID, ids.DistrictID))
	} else {
		add(FieldProjectType, domain.EqualText(existing.Names.ProjectType, row.ProjectName))
		add(FieldProvince, domain.EqualText(existing.Names.Province, row.Province))
		add(FieldMunicipality, domain.EqualText(existing.Names.Municipality, row.Municipality))
		add(FieldBarangay, domain.EqualText(existing.Names.Barangay, row.Barangay))
		add(FieldDistrict, domain.EqualText(existing.Names.District, row.District))
	}

	add(FieldLatitude, equalDecimal(existing.Latitude, row.Latitude))
	add(FieldLongitude, equalDecimal(existing.Longitude, row.Longitude))

	date, ok := domain.ParseActivationDate(row.ActivationDate)
	add(FieldActivationDate, ok && date.Format(domain.DateLayout) == existing.ActivationDate.Format(domain.DateLayout))

	if status, ok := domain.ParseSiteStatus(row.Status); ok {
		add(FieldStatus, status == existing.Status)
	} else {
		add(FieldStatus, domain.EqualText(string(existing.Status), row.Status))
	}

	return differing
}

func equalDecimal(stored decimal.Decimal, raw string) bool {
	incoming, err := decimal.NewFromString(raw)
	if err != nil {
		return false
	}
	return stored.Equal(incoming)
}

func equalOptionalID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func naturalKeys(rows []domain.ParsedRow) []string {
	seen := make(map[string]struct{}, len(rows))
	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		key := row.NaturalKey()
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}
