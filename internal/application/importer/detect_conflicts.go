package importer

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	domain "github.com/mohammadpnp/site-import/internal/domain/project"
)

type DetectConflictsInput struct {
	Filename string
	Content  io.Reader
}

type DetectConflictsOutput struct {
	TotalRows     int               `json:"totalRows"`
	ConflictCount int               `json:"conflictCount"`
	NewEntryCount int               `json:"newEntryCount"`
	Conflicts     []domain.Conflict `json:"conflicts"`
	NewEntries    []NewEntryOutput  `json:"newEntries"`
}

type NewEntryOutput struct {
	RowNumber int                 `json:"rowNumber"`
	Record    domain.SiteSnapshot `json:"record"`
}

type DetectConflicts interface {
	Execute(ctx context.Context, in DetectConflictsInput) (DetectConflictsOutput, error)
}

type detectConflicts struct {
	detector conflictFinder
	maxRows  int
}

func NewDetectConflicts(detector conflictFinder, maxRows int) DetectConflicts {
	return &detectConflicts{detector: detector, maxRows: maxRows}
}

func (uc *detectConflicts) Execute(ctx context.Context, in DetectConflictsInput) (DetectConflictsOutput, error) {
	if in.Content == nil || !isCSVFilename(strings.TrimSpace(filepath.Base(in.Filename))) {
		return DetectConflictsOutput{}, ErrInvalidImportFile
	}

	rows, err := ParseCSV(in.Content, uc.maxRows)
	if err != nil {
		return DetectConflictsOutput{}, err
	}

	detected, err := uc.detector.Detect(ctx, rows)
	if err != nil {
		return DetectConflictsOutput{}, fmt.Errorf("%w: %v", ErrDetectConflicts, err)
	}

	newEntries := make([]NewEntryOutput, 0, len(detected.NewEntries))
	for _, row := range detected.NewEntries {
		newEntries = append(newEntries, NewEntryOutput{RowNumber: row.RowNumber, Record: row.Snapshot()})
	}

	return DetectConflictsOutput{
		TotalRows:     len(rows),
		ConflictCount: len(detected.Conflicts),
		NewEntryCount: len(newEntries),
		Conflicts:     detected.Conflicts,
		NewEntries:    newEntries,
	}, nil
}
