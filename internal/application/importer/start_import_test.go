package importer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	app "github.com/mohammadpnp/site-import/internal/application/importer"
	domain "github.com/mohammadpnp/site-import/internal/domain/project"
)

type startFixture struct {
	uc       app.StartImport
	jobs     *fakeJobStore
	files    *fakeFileStore
	notifier *countingNotifier
}

func newStartFixture(stored ...domain.ProjectSite) *startFixture {
	f := &startFixture{
		jobs:     newFakeJobStore(),
		files:    newFakeFileStore(),
		notifier: &countingNotifier{},
	}
	detector := newDetector(newFakeSiteRepository(stored...))
	f.uc = app.NewStartImport(f.jobs, f.files, detector, f.notifier, 100)
	return f
}

func TestStartImportQueuesJob(t *testing.T) {
	t.Parallel()

	f := newStartFixture()
	submitter := "user-9"

	out, err := f.uc.Execute(context.Background(), app.StartImportInput{
		Filename:       "sites.csv",
		Content:        strings.NewReader(sitesCSV("PH-CCTV-1", "PH-CCTV-2")),
		SkipDuplicates: true,
		SubmittedBy:    &submitter,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.Status != domain.JobStatusPending || out.TotalRows != 2 || out.ImportID == "" {
		t.Fatalf("unexpected output: %+v", out)
	}

	if len(f.jobs.created) != 1 {
		t.Fatalf("expected one job, got %d", len(f.jobs.created))
	}
	job := f.jobs.created[0]
	if job.StoredFilename != "stored-1.csv" || job.OriginalFilename != "sites.csv" {
		t.Fatalf("unexpected filenames: %+v", job)
	}
	if !job.Options.SkipDuplicates || job.SubmittedBy == nil || *job.SubmittedBy != "user-9" {
		t.Fatalf("unexpected job options: %+v", job)
	}
	if f.files.saved["stored-1.csv"] != sitesCSV("PH-CCTV-1", "PH-CCTV-2") {
		t.Fatal("expected the upload to be stored verbatim")
	}
	if f.notifier.calls != 1 {
		t.Fatalf("expected worker to be notified once, got %d", f.notifier.calls)
	}
}

func TestStartImportRejectsNonCSV(t *testing.T) {
	t.Parallel()

	f := newStartFixture()

	for _, name := range []string{"sites.xlsx", "", "sites"} {
		_, err := f.uc.Execute(context.Background(), app.StartImportInput{
			Filename: name,
			Content:  strings.NewReader(csvHeader),
		})
		if !errors.Is(err, app.ErrInvalidImportFile) {
			t.Fatalf("%q: expected ErrInvalidImportFile, got %v", name, err)
		}
	}
	if len(f.files.saved) != 0 {
		t.Fatal("nothing may be stored for a rejected upload")
	}
}

func TestStartImportRejectsMissingColumns(t *testing.T) {
	t.Parallel()

	f := newStartFixture()

	_, err := f.uc.Execute(context.Background(), app.StartImportInput{
		Filename: "sites.csv",
		Content:  strings.NewReader("Site Code,Site Name\nPH-CCTV-1,Plaza\n"),
	})

	var missing *app.MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingColumnsError, got %v", err)
	}
	if !errors.Is(err, app.ErrMissingColumns) {
		t.Fatal("expected ErrMissingColumns in chain")
	}
	if len(f.jobs.created) != 0 {
		t.Fatal("no job may be created")
	}
}

func TestStartImportRequiresDecisionsWhenNoPolicy(t *testing.T) {
	t.Parallel()

	f := newStartFixture(storedSite(1, "PH-CCTV-2"))

	_, err := f.uc.Execute(context.Background(), app.StartImportInput{
		Filename: "sites.csv",
		Content:  strings.NewReader(sitesCSV("PH-CCTV-1", "PH-CCTV-2")),
	})

	var conflicts *app.ConflictsError
	if !errors.As(err, &conflicts) {
		t.Fatalf("expected ConflictsError, got %v", err)
	}
	if !errors.Is(err, app.ErrConflictsRequireResolution) {
		t.Fatalf("expected ErrConflictsRequireResolution, got %v", err)
	}
	if len(conflicts.Rows) != 1 || conflicts.Rows[0] != 2 {
		t.Fatalf("unexpected conflict rows: %v", conflicts.Rows)
	}
	if len(f.jobs.created) != 0 || len(f.files.saved) != 0 {
		t.Fatal("nothing may be written before conflicts are decided")
	}
}

func TestStartImportRejectsMissingResolution(t *testing.T) {
	t.Parallel()

	f := newStartFixture(storedSite(1, "PH-CCTV-1"), storedSite(2, "PH-CCTV-2"))

	_, err := f.uc.Execute(context.Background(), app.StartImportInput{
		Filename:        "sites.csv",
		Content:         strings.NewReader(sitesCSV("PH-CCTV-1", "PH-CCTV-2")),
		SkipDuplicates:  true,
		ResolutionsJSON: `[{"rowIndex":1,"action":"override"}]`,
	})

	if !errors.Is(err, app.ErrUnresolvedConflicts) {
		t.Fatalf("expected ErrUnresolvedConflicts, got %v", err)
	}
	var conflicts *app.ConflictsError
	if !errors.As(err, &conflicts) || len(conflicts.Rows) != 1 || conflicts.Rows[0] != 2 {
		t.Fatalf("expected row 2 to be reported, got %v", err)
	}
	if len(f.jobs.created) != 0 || len(f.files.saved) != 0 {
		t.Fatal("nothing may be written when a decision is missing")
	}
}

func TestStartImportAcceptsCompleteResolutions(t *testing.T) {
	t.Parallel()

	f := newStartFixture(storedSite(1, "PH-CCTV-1"))

	_, err := f.uc.Execute(context.Background(), app.StartImportInput{
		Filename:        "sites.csv",
		Content:         strings.NewReader(sitesCSV("PH-CCTV-1", "PH-CCTV-2")),
		ResolutionsJSON: `[{"rowIndex":1,"action":"override"}]`,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got := f.jobs.created[0].Options.Resolutions
	if got[1] != domain.ResolutionOverride {
		t.Fatalf("unexpected resolutions: %v", got)
	}
}

func TestStartImportRemovesFileWhenEnqueueFails(t *testing.T) {
	t.Parallel()

	f := newStartFixture()
	f.jobs.createErr = errors.New("db down")

	_, err := f.uc.Execute(context.Background(), app.StartImportInput{
		Filename:       "sites.csv",
		Content:        strings.NewReader(sitesCSV("PH-CCTV-1")),
		SkipDuplicates: true,
	})
	if !errors.Is(err, app.ErrEnqueueImportJob) {
		t.Fatalf("expected ErrEnqueueImportJob, got %v", err)
	}
	if len(f.files.removed) != 1 || len(f.files.saved) != 0 {
		t.Fatalf("expected stored file to be removed, got %v", f.files.removed)
	}
	if f.notifier.calls != 0 {
		t.Fatal("worker must not be notified")
	}
}

func TestStartImportRowLimit(t *testing.T) {
	t.Parallel()

	f := newStartFixture()

	_, err := f.uc.Execute(context.Background(), app.StartImportInput{
		Filename:       "sites.csv",
		Content:        strings.NewReader(sitesCSV(numberedCodes(101)...)),
		SkipDuplicates: true,
	})
	if !errors.Is(err, app.ErrTooManyRows) {
		t.Fatalf("expected ErrTooManyRows, got %v", err)
	}
}

func TestParseResolutions(t *testing.T) {
	t.Parallel()

	got, err := app.ParseResolutions(`[{"rowIndex":3,"action":"override"},{"rowIndex":5,"action":"SKIP"},{"rowIndex":3,"action":"override"}]`)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 2 || got[3] != domain.ResolutionOverride || got[5] != domain.ResolutionSkip {
		t.Fatalf("unexpected resolutions: %v", got)
	}

	if got, err := app.ParseResolutions("  "); err != nil || got != nil {
		t.Fatalf("expected empty input to mean none, got %v %v", got, err)
	}

	invalid := []string{
		`{"rowIndex":1}`,
		`[{"action":"skip"}]`,
		`[{"rowIndex":0,"action":"skip"}]`,
		`[{"rowIndex":1,"action":"merge"}]`,
		`[{"rowIndex":1,"action":"skip"},{"rowIndex":1,"action":"override"}]`,
	}
	for _, raw := range invalid {
		if _, err := app.ParseResolutions(raw); !errors.Is(err, app.ErrInvalidResolutions) {
			t.Fatalf("%s: expected ErrInvalidResolutions, got %v", raw, err)
		}
	}
}
