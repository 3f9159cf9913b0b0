package repository

import (
	"context"
	"fmt"

	domain "github.com/mohammadpnp/site-import/internal/domain/project"
	"github.com/mohammadpnp/site-import/internal/infrastructure/db/models"
	"gorm.io/gorm"
)

// ReferenceRepository loads the lookup tables used to resolve upload names.
// Entries are ordered by id so the lowest id wins on duplicate names.
type ReferenceRepository struct {
	db *gorm.DB
}

func NewReferenceRepository(db *gorm.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

func (r *ReferenceRepository) LoadReferenceData(ctx context.Context) (domain.ReferenceData, error) {
	var (
		data domain.ReferenceData
		err  error
	)
	if data.ProjectTypes, err = r.LoadProjectTypes(ctx); err != nil {
		return domain.ReferenceData{}, err
	}
	if data.Provinces, err = r.LoadProvinces(ctx); err != nil {
		return domain.ReferenceData{}, err
	}
	if data.Municipalities, err = r.LoadMunicipalities(ctx); err != nil {
		return domain.ReferenceData{}, err
	}
	if data.Barangays, err = r.LoadBarangays(ctx); err != nil {
		return domain.ReferenceData{}, err
	}
	if data.Districts, err = r.LoadDistricts(ctx); err != nil {
		return domain.ReferenceData{}, err
	}
	return data, nil
}

func (r *ReferenceRepository) LoadProjectTypes(ctx context.Context) ([]domain.ReferenceEntry, error) {
	var rows []models.ProjectType
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load project types: %w", err)
	}
	entries := make([]domain.ReferenceEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.ReferenceEntry{ID: row.ID, Name: row.Name})
	}
	return entries, nil
}

func (r *ReferenceRepository) LoadProvinces(ctx context.Context) ([]domain.ReferenceEntry, error) {
	var rows []models.Province
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load provinces: %w", err)
	}
	entries := make([]domain.ReferenceEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.ReferenceEntry{ID: row.ID, Name: row.Name})
	}
	return entries, nil
}

func (r *ReferenceRepository) LoadMunicipalities(ctx context.Context) ([]domain.ReferenceEntry, error) {
	var rows []models.Municipality
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load municipalities: %w", err)
	}
	entries := make([]domain.ReferenceEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.ReferenceEntry{ID: row.ID, Name: row.Name, ParentID: row.ProvinceID})
	}
	return entries, nil
}

func (r *ReferenceRepository) LoadBarangays(ctx context.Context) ([]domain.ReferenceEntry, error) {
	var rows []models.Barangay
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load barangays: %w", err)
	}
	entries := make([]domain.ReferenceEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.ReferenceEntry{ID: row.ID, Name: row.Name, ParentID: row.MunicipalityID})
	}
	return entries, nil
}

func (r *ReferenceRepository) LoadDistricts(ctx context.Context) ([]domain.ReferenceEntry, error) {
	var rows []models.District
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load districts: %w", err)
	}
	entries := make([]domain.ReferenceEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.ReferenceEntry{ID: row.ID, Name: row.Name, ParentID: row.ProvinceID})
	}
	return entries, nil
}
