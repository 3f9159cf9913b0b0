package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	domain "github.com/mohammadpnp/site-import/internal/domain/project"
	"github.com/shopspring/decimal"
)

const statusHistorySource = "csv_import"

// ProjectSiteRepository reads sites by natural key and writes one site per
// transaction together with its status history entry.
type ProjectSiteRepository struct {
	pool *pgxpool.Pool
}

func NewProjectSiteRepository(pool *pgxpool.Pool) *ProjectSiteRepository {
	return &ProjectSiteRepository{pool: pool}
}

func (r *ProjectSiteRepository) FindByCodes(ctx context.Context, codes []string) (map[string]domain.ProjectSite, error) {
	sites := make(map[string]domain.ProjectSite, len(codes))
	if len(codes) == 0 {
		return sites, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT
  s.id, s.site_code, s.site_name,
  s.project_type_id, s.province_id, s.municipality_id, s.barangay_id, s.district_id,
  s.latitude::text, s.longitude::text, s.activation_date, s.status, s.created_by, s.updated_at,
  pt.name, pr.name, m.name, COALESCE(b.name, ''), COALESCE(d.name, '')
FROM project_sites s
JOIN project_types pt ON pt.id = s.project_type_id
JOIN provinces pr ON pr.id = s.province_id
JOIN municipalities m ON m.id = s.municipality_id
LEFT JOIN barangays b ON b.id = s.barangay_id
LEFT JOIN districts d ON d.id = s.district_id
WHERE s.site_code = ANY($1)
`, codes)
	if err != nil {
		return nil, fmt.Errorf("find sites by code: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			site     domain.ProjectSite
			lat, lng string
			status   string
		)
		if err := rows.Scan(
			&site.ID, &site.SiteCode, &site.SiteName,
			&site.ProjectTypeID, &site.ProvinceID, &site.MunicipalityID, &site.BarangayID, &site.DistrictID,
			&lat, &lng, &site.ActivationDate, &status, &site.CreatedBy, &site.UpdatedAt,
			&site.Names.ProjectType, &site.Names.Province, &site.Names.Municipality,
			&site.Names.Barangay, &site.Names.District,
		); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		if site.Latitude, err = decimal.NewFromString(lat); err != nil {
			return nil, fmt.Errorf("site %s latitude: %w", site.SiteCode, err)
		}
		if site.Longitude, err = decimal.NewFromString(lng); err != nil {
			return nil, fmt.Errorf("site %s longitude: %w", site.SiteCode, err)
		}
		site.Status = domain.SiteStatus(status)
		sites[site.SiteCode] = site
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}

	return sites, nil
}

// Insert stores a new site. A site code taken by a concurrent writer is
// reported as ErrSiteCodeTaken instead of a unique violation.
func (r *ProjectSiteRepository) Insert(ctx context.Context, site domain.ProjectSite) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
INSERT INTO project_sites (
  site_code, site_name, project_type_id, province_id, municipality_id, barangay_id, district_id,
  latitude, longitude, activation_date, status, created_by, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10, $11, $12, NOW(), NOW())
ON CONFLICT (site_code) DO NOTHING
RETURNING id
`,
		site.SiteCode, site.SiteName, site.ProjectTypeID, site.ProvinceID, site.MunicipalityID,
		site.BarangayID, site.DistrictID, site.Latitude.String(), site.Longitude.String(),
		site.ActivationDate, string(site.Status), site.CreatedBy,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrSiteCodeTaken
	}
	if err != nil {
		return 0, fmt.Errorf("insert site: %w", err)
	}

	if err := insertStatusHistory(ctx, tx, id, site); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit insert site: %w", err)
	}
	return id, nil
}

// Update overwrites the business fields of an existing site. The creator and
// site code are kept.
func (r *ProjectSiteRepository) Update(ctx context.Context, siteID int64, site domain.ProjectSite) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
UPDATE project_sites
SET site_name = $2,
    project_type_id = $3,
    province_id = $4,
    municipality_id = $5,
    barangay_id = $6,
    district_id = $7,
    latitude = $8::numeric,
    longitude = $9::numeric,
    activation_date = $10,
    status = $11,
    updated_at = NOW()
WHERE id = $1
`,
		siteID, site.SiteName, site.ProjectTypeID, site.ProvinceID, site.MunicipalityID,
		site.BarangayID, site.DistrictID, site.Latitude.String(), site.Longitude.String(),
		site.ActivationDate, string(site.Status),
	)
	if err != nil {
		return fmt.Errorf("update site: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSiteNotFound
	}

	if err := insertStatusHistory(ctx, tx, siteID, site); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update site: %w", err)
	}
	return nil
}

func insertStatusHistory(ctx context.Context, tx pgx.Tx, siteID int64, site domain.ProjectSite) error {
	if _, err := tx.Exec(ctx, `
INSERT INTO project_site_status_history (site_id, status, changed_by, source, created_at)
VALUES ($1, $2, $3, $4, NOW())
`, siteID, string(site.Status), site.CreatedBy, statusHistorySource); err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}
