package project

// ReferenceEntry is one row of a lookup table. ParentID is the province for
// municipalities and districts and the municipality for barangays.
type ReferenceEntry struct {
	ID       int64
	Name     string
	ParentID int64
}

type ReferenceData struct {
	ProjectTypes   []ReferenceEntry
	Provinces      []ReferenceEntry
	Municipalities []ReferenceEntry
	Barangays      []ReferenceEntry
	Districts      []ReferenceEntry
}
