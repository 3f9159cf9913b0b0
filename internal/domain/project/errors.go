package project

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid import job status transition")
	ErrJobTerminal       = errors.New("import job already finished")
	ErrRowOutOfOrder     = errors.New("row error recorded out of order")
	ErrJobNotFound       = errors.New("import job not found")
	ErrJobNotPending     = errors.New("import job is not pending")
	ErrSiteNotFound      = errors.New("project site not found")
	ErrSiteCodeTaken     = errors.New("site code already exists")
	ErrInvalidResolution = errors.New("invalid conflict resolution")
)
