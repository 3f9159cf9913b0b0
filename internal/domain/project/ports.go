package project

import "context"

type SiteRepository interface {
	FindByCodes(ctx context.Context, codes []string) (map[string]ProjectSite, error)
	Insert(ctx context.Context, site ProjectSite) (int64, error)
	Update(ctx context.Context, siteID int64, site ProjectSite) error
}

type ReferenceLoader interface {
	LoadReferenceData(ctx context.Context) (ReferenceData, error)
}

type ImportCompletion struct {
	JobID        string
	Filename     string
	Status       JobStatus
	TotalRows    int
	SuccessCount int
	ErrorCount   int
	SubmittedBy  *string
}

type CompletionNotifier interface {
	NotifyImportCompleted(ctx context.Context, completion ImportCompletion) error
}
