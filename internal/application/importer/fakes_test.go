package importer_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	app "github.com/mohammadpnp/site-import/internal/application/importer"
	domain "github.com/mohammadpnp/site-import/internal/domain/project"
	"github.com/shopspring/decimal"
)

const csvHeader = "Site Code,Project Name,Site Name,Barangay,Municipality,Province,District,Latitude,Longitude,Date of Activation,Status\n"

func siteLine(code string) string {
	return code + ",CCTV Installation,Plaza Rizal,Real,Calamba,Laguna,District 2,14.2117,121.1653,2024-03-15,Pending\n"
}

// sitesCSV builds a file with one valid row per code.
func sitesCSV(codes ...string) string {
	var b strings.Builder
	b.WriteString(csvHeader)
	for _, code := range codes {
		b.WriteString(siteLine(code))
	}
	return b.String()
}

func numberedCodes(n int) []string {
	codes := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		codes = append(codes, fmt.Sprintf("PH-CCTV-%d", i))
	}
	return codes
}

func referenceData() domain.ReferenceData {
	return domain.ReferenceData{
		ProjectTypes:   []domain.ReferenceEntry{{ID: 1, Name: "CCTV Installation"}, {ID: 2, Name: "WiFi Hotspot"}},
		Provinces:      []domain.ReferenceEntry{{ID: 10, Name: "Laguna"}, {ID: 11, Name: "Batangas"}},
		Municipalities: []domain.ReferenceEntry{{ID: 100, Name: "Calamba", ParentID: 10}, {ID: 101, Name: "San Pablo", ParentID: 10}},
		Barangays:      []domain.ReferenceEntry{{ID: 1000, Name: "Real", ParentID: 100}},
		Districts:      []domain.ReferenceEntry{{ID: 500, Name: "District 2", ParentID: 10}},
	}
}

func storedSite(id int64, code string) domain.ProjectSite {
	barangay, district := int64(1000), int64(500)
	return domain.ProjectSite{
		ID:             id,
		SiteCode:       code,
		SiteName:       "Plaza Rizal",
		ProjectTypeID:  1,
		ProvinceID:     10,
		MunicipalityID: 100,
		BarangayID:     &barangay,
		DistrictID:     &district,
		Latitude:       decimal.RequireFromString("14.2117"),
		Longitude:      decimal.RequireFromString("121.1653"),
		ActivationDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:         domain.SiteStatusPending,
		Names: domain.SiteNames{
			ProjectType:  "CCTV Installation",
			Province:     "Laguna",
			Municipality: "Calamba",
			Barangay:     "Real",
			District:     "District 2",
		},
	}
}

func newDetector(sites app.SiteFinder) *app.ConflictDetector {
	return app.NewConflictDetector(sites, app.NewReferenceResolver(&fakeReferenceLoader{data: referenceData()}, time.Minute))
}

type fakeReferenceLoader struct {
	mu    sync.Mutex
	data  domain.ReferenceData
	err   error
	calls int
}

func (f *fakeReferenceLoader) LoadReferenceData(ctx context.Context) (domain.ReferenceData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return domain.ReferenceData{}, f.err
	}
	return f.data, nil
}

func (f *fakeReferenceLoader) loadCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSiteRepository struct {
	mu        sync.Mutex
	existing  map[string]domain.ProjectSite
	findErr   error
	insertErr map[string]error
	updateErr map[string]error
	inserted  []domain.ProjectSite
	updated   []domain.ProjectSite
	nextID    int64
	onInsert  func(count int)
}

func newFakeSiteRepository(sites ...domain.ProjectSite) *fakeSiteRepository {
	existing := make(map[string]domain.ProjectSite, len(sites))
	for _, site := range sites {
		existing[site.SiteCode] = site
	}
	return &fakeSiteRepository{existing: existing, nextID: 1000}
}

func (f *fakeSiteRepository) FindByCodes(ctx context.Context, codes []string) (map[string]domain.ProjectSite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	found := make(map[string]domain.ProjectSite)
	for _, code := range codes {
		if site, ok := f.existing[code]; ok {
			found[code] = site
		}
	}
	return found, nil
}

func (f *fakeSiteRepository) Insert(ctx context.Context, site domain.ProjectSite) (int64, error) {
	f.mu.Lock()
	if err := f.insertErr[site.SiteCode]; err != nil {
		f.mu.Unlock()
		return 0, err
	}
	f.nextID++
	site.ID = f.nextID
	f.inserted = append(f.inserted, site)
	f.existing[site.SiteCode] = site
	count := len(f.inserted)
	hook := f.onInsert
	f.mu.Unlock()

	if hook != nil {
		hook(count)
	}
	return site.ID, nil
}

func (f *fakeSiteRepository) Update(ctx context.Context, siteID int64, site domain.ProjectSite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateErr[site.SiteCode]; err != nil {
		return err
	}
	site.ID = siteID
	f.updated = append(f.updated, site)
	f.existing[site.SiteCode] = site
	return nil
}

type fakeEngineJobs struct {
	mu         sync.Mutex
	claimJob   *domain.ImportJob
	claimErr   error
	saveErr    error
	saved      []domain.ImportJob
	finished   *domain.ImportJob
	heartbeats int
}

// claim moves a Pending job to Processing the way the job repository does.
func claim(job domain.ImportJob) (*domain.ImportJob, error) {
	if job.Status != domain.JobStatusPending {
		return nil, domain.ErrJobNotPending
	}
	now := time.Now()
	job.Status = domain.JobStatusProcessing
	job.StartedAt = &now
	job.HeartbeatAt = &now
	return &job, nil
}

func (f *fakeEngineJobs) Claim(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	return claim(*f.claimJob)
}

func (f *fakeEngineJobs) Heartbeat(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return nil
}

func (f *fakeEngineJobs) SaveProgress(ctx context.Context, job domain.ImportJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, job)
	return nil
}

func (f *fakeEngineJobs) Finish(ctx context.Context, job domain.ImportJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = &job
	return nil
}

type fakeSource struct {
	data string
	err  error
}

func (f *fakeSource) Open(ctx context.Context, storedFilename string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.data)), nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (f *fakePublisher) Publish(jobID string, event domain.ProgressEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakePublisher) snapshot() []domain.ProgressEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ProgressEvent(nil), f.events...)
}

type fakeNotifier struct {
	mu          sync.Mutex
	completions []domain.ImportCompletion
}

func (f *fakeNotifier) NotifyImportCompleted(ctx context.Context, completion domain.ImportCompletion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions = append(f.completions, completion)
	return nil
}

type fakeJobStore struct {
	jobs      map[string]domain.ImportJob
	getErr    error
	createErr error
	deleteErr error
	created   []domain.ImportJob
	deleted   []string
	listTotal int64
	listArgs  [2]int
}

func newFakeJobStore(jobs ...domain.ImportJob) *fakeJobStore {
	store := &fakeJobStore{jobs: make(map[string]domain.ImportJob)}
	for _, job := range jobs {
		store.jobs[job.ID] = job
	}
	return store
}

func (f *fakeJobStore) Create(ctx context.Context, job domain.ImportJob) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	job.ID = "8d0c3c52-0f3e-4f4e-9b0a-7b1b1c6c9a11"
	f.created = append(f.created, job)
	f.jobs[job.ID] = job
	return job.ID, nil
}

func (f *fakeJobStore) Get(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return &job, nil
}

func (f *fakeJobStore) List(ctx context.Context, limit, offset int) ([]domain.ImportJob, int64, error) {
	f.listArgs = [2]int{limit, offset}
	out := make([]domain.ImportJob, 0, len(f.jobs))
	for _, job := range f.jobs {
		out = append(out, job)
	}
	return out, f.listTotal, nil
}

func (f *fakeJobStore) Delete(ctx context.Context, jobID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, jobID)
	delete(f.jobs, jobID)
	return nil
}

type fakeFileStore struct {
	saveErr error
	saved   map[string]string
	removed []string
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{saved: make(map[string]string)}
}

func (f *fakeFileStore) Save(ctx context.Context, originalFilename string, content io.Reader) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	raw, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("stored-%d.csv", len(f.saved)+1)
	f.saved[name] = string(raw)
	return name, nil
}

func (f *fakeFileStore) Remove(ctx context.Context, storedFilename string) error {
	f.removed = append(f.removed, storedFilename)
	delete(f.saved, storedFilename)
	return nil
}

type countingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *countingNotifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
}
