package importer

import "errors"

var (
	ErrInvalidImportFile          = errors.New("import file must be a .csv file")
	ErrInvalidCSV                 = errors.New("invalid csv file")
	ErrMissingColumns             = errors.New("missing required columns")
	ErrTooManyRows                = errors.New("csv row limit exceeded")
	ErrInvalidResolutions         = errors.New("invalid resolutions")
	ErrUnresolvedConflicts        = errors.New("conflicts without a resolution")
	ErrConflictsRequireResolution = errors.New("conflicts require resolution")
	ErrEnqueueImportJob           = errors.New("failed to enqueue import job")
	ErrDetectConflicts            = errors.New("failed to detect conflicts")
	ErrInvalidImportID            = errors.New("invalid import id")
	ErrImportNotFound             = errors.New("import not found")
	ErrImportNotFinished          = errors.New("import has not finished")
	ErrNoImportErrors             = errors.New("import has no errors")
	ErrGetImport                  = errors.New("failed to get import")
	ErrListImports                = errors.New("failed to list imports")
	ErrDeleteImport               = errors.New("failed to delete import")
	ErrJobAlreadyRunning          = errors.New("import job already running")
	ErrReferenceData              = errors.New("reference data unavailable")
)
