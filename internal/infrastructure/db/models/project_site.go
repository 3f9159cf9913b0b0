package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProjectSite struct {
	ID             int64           `gorm:"primaryKey"`
	SiteCode       string          `gorm:"type:text;not null;uniqueIndex"`
	SiteName       string          `gorm:"type:text;not null"`
	ProjectTypeID  int64           `gorm:"not null"`
	ProvinceID     int64           `gorm:"not null"`
	MunicipalityID int64           `gorm:"not null"`
	BarangayID     *int64          `gorm:""`
	DistrictID     *int64          `gorm:""`
	Latitude       decimal.Decimal `gorm:"type:numeric;not null"`
	Longitude      decimal.Decimal `gorm:"type:numeric;not null"`
	ActivationDate time.Time       `gorm:"type:date;not null"`
	Status         string          `gorm:"type:text;not null"`
	CreatedBy      *string         `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ProjectSite) TableName() string {
	return "project_sites"
}

// ProjectSiteStatusHistory records every status a site was written with.
type ProjectSiteStatusHistory struct {
	ID        int64   `gorm:"primaryKey"`
	SiteID    int64   `gorm:"not null;index"`
	Status    string  `gorm:"type:text;not null"`
	ChangedBy *string `gorm:"type:text"`
	Source    string  `gorm:"type:text;not null"`
	CreatedAt time.Time
}

func (ProjectSiteStatusHistory) TableName() string {
	return "project_site_status_history"
}
