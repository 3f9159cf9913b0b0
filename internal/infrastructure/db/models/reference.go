package models

type ProjectType struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"type:text;not null"`
}

func (ProjectType) TableName() string {
	return "project_types"
}

type Province struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"type:text;not null"`
}

func (Province) TableName() string {
	return "provinces"
}

type Municipality struct {
	ID         int64  `gorm:"primaryKey"`
	ProvinceID int64  `gorm:"not null;index"`
	Name       string `gorm:"type:text;not null"`
}

func (Municipality) TableName() string {
	return "municipalities"
}

type Barangay struct {
	ID             int64  `gorm:"primaryKey"`
	MunicipalityID int64  `gorm:"not null;index"`
	Name           string `gorm:"type:text;not null"`
}

func (Barangay) TableName() string {
	return "barangays"
}

type District struct {
	ID         int64  `gorm:"primaryKey"`
	ProvinceID int64  `gorm:"not null;index"`
	Name       string `gorm:"type:text;not null"`
}

func (District) TableName() string {
	return "districts"
}
