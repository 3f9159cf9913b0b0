package importer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	domain "github.com/mohammadpnp/site-import/internal/domain/project"
	"golang.org/x/sync/errgroup"
)

const defaultReferenceTTL = 5 * time.Minute

// referenceCache is immutable once published; a refresh builds a new one.
type referenceCache struct {
	projectTypes   map[string]int64
	provinces      map[string]int64
	municipalities map[string]int64
	barangays      map[string]int64
	districts      map[string]int64
	refreshedAt    time.Time
}

// ReferenceResolver translates the names used in uploads into reference ids.
// One instance is shared by every job in the process.
type ReferenceResolver struct {
	loader domain.ReferenceLoader
	ttl    time.Duration
	now    func() time.Time

	cache   atomic.Pointer[referenceCache]
	stale   atomic.Bool
	rebuild sync.Mutex
}

func NewReferenceResolver(loader domain.ReferenceLoader, ttl time.Duration) *ReferenceResolver {
	if ttl <= 0 {
		ttl = defaultReferenceTTL
	}
	return &ReferenceResolver{
		loader: loader,
		ttl:    ttl,
		now:    time.Now,
	}
}

// RefreshIfStale returns immediately while the cache is fresh. Otherwise a
// single caller rebuilds it and concurrent callers wait for that rebuild.
func (r *ReferenceResolver) RefreshIfStale(ctx context.Context) error {
	if r.fresh() {
		return nil
	}

	r.rebuild.Lock()
	defer r.rebuild.Unlock()
	if r.fresh() {
		return nil
	}

	invalidated := r.stale.Swap(false)
	data, err := r.loadAll(ctx)
	if err != nil {
		if invalidated {
			r.stale.Store(true)
		}
		return fmt.Errorf("%w: %v", ErrReferenceData, err)
	}

	r.cache.Store(buildReferenceCache(data, r.now()))
	return nil
}

// Invalidate forces the next RefreshIfStale to reload. Readers keep using the
// current maps until the replacement is published.
func (r *ReferenceResolver) Invalidate() {
	r.stale.Store(true)
}

func (r *ReferenceResolver) RefreshedAt() time.Time {
	cache := r.cache.Load()
	if cache == nil {
		return time.Time{}
	}
	return cache.refreshedAt
}

func (r *ReferenceResolver) fresh() bool {
	cache := r.cache.Load()
	return cache != nil && !r.stale.Load() && r.now().Sub(cache.refreshedAt) < r.ttl
}

func (r *ReferenceResolver) loadAll(ctx context.Context) (domain.ReferenceData, error) {
	tables, ok := r.loader.(TableReferenceLoader)
	if !ok {
		return r.loader.LoadReferenceData(ctx)
	}

	var data domain.ReferenceData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.ProjectTypes, err = tables.LoadProjectTypes(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.Provinces, err = tables.LoadProvinces(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.Municipalities, err = tables.LoadMunicipalities(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.Barangays, err = tables.LoadBarangays(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.Districts, err = tables.LoadDistricts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.ReferenceData{}, err
	}
	return data, nil
}

// Resolve maps a row's names to ids. Project type, province and municipality
// are required; barangay and district are left unset when not found.
func (r *ReferenceResolver) Resolve(row domain.ParsedRow) (domain.ResolvedIDs, []string) {
	cache := r.cache.Load()
	if cache == nil {
		return domain.ResolvedIDs{}, []string{"reference data is not loaded"}
	}

	var (
		ids      domain.ResolvedIDs
		messages []string
	)

	if id, ok := cache.projectTypes[nameKey(row.ProjectName)]; ok {
		ids.ProjectTypeID = id
	} else {
		messages = append(messages, fmt.Sprintf("Project type %q not found", strings.TrimSpace(row.ProjectName)))
	}

	if id, ok := cache.provinces[nameKey(row.Province)]; ok {
		ids.ProvinceID = id
	} else {
		messages = append(messages, fmt.Sprintf("Province %q not found", strings.TrimSpace(row.Province)))
	}

	municipality := nameKey(row.Municipality)
	if id, ok := cache.municipalities[scopedKey(ids.ProvinceID, municipality)]; ok && ids.ProvinceID != 0 {
		ids.MunicipalityID = id
	} else if id, ok := cache.municipalities[municipality]; ok {
		ids.MunicipalityID = id
	} else {
		messages = append(messages, fmt.Sprintf("Municipality %q not found", strings.TrimSpace(row.Municipality)))
	}

	if name := nameKey(row.Barangay); name != "" && ids.MunicipalityID != 0 {
		if id, ok := cache.barangays[scopedKey(ids.MunicipalityID, name)]; ok {
			ids.BarangayID = &id
		}
	}
	if name := nameKey(row.District); name != "" && ids.ProvinceID != 0 {
		if id, ok := cache.districts[scopedKey(ids.ProvinceID, name)]; ok {
			ids.DistrictID = &id
		}
	}

	return ids, messages
}

// TableReferenceLoader is implemented by loaders that can fetch each lookup
// table separately; the resolver then loads the five tables concurrently.
type TableReferenceLoader interface {
	domain.ReferenceLoader
	LoadProjectTypes(ctx context.Context) ([]domain.ReferenceEntry, error)
	LoadProvinces(ctx context.Context) ([]domain.ReferenceEntry, error)
	LoadMunicipalities(ctx context.Context) ([]domain.ReferenceEntry, error)
	LoadBarangays(ctx context.Context) ([]domain.ReferenceEntry, error)
	LoadDistricts(ctx context.Context) ([]domain.ReferenceEntry, error)
}

func buildReferenceCache(data domain.ReferenceData, refreshedAt time.Time) *referenceCache {
	cache := &referenceCache{
		projectTypes:   make(map[string]int64, len(data.ProjectTypes)),
		provinces:      make(map[string]int64, len(data.Provinces)),
		municipalities: make(map[string]int64, len(data.Municipalities)*2),
		barangays:      make(map[string]int64, len(data.Barangays)),
		districts:      make(map[string]int64, len(data.Districts)),
		refreshedAt:    refreshedAt,
	}

	for _, entry := range data.ProjectTypes {
		putFirst(cache.projectTypes, nameKey(entry.Name), entry.ID)
	}
	for _, entry := range data.Provinces {
		putFirst(cache.provinces, nameKey(entry.Name), entry.ID)
	}
	for _, entry := range data.Municipalities {
		name := nameKey(entry.Name)
		putFirst(cache.municipalities, name, entry.ID)
		if entry.ParentID != 0 {
			putFirst(cache.municipalities, scopedKey(entry.ParentID, name), entry.ID)
		}
	}
	for _, entry := range data.Barangays {
		putFirst(cache.barangays, scopedKey(entry.ParentID, nameKey(entry.Name)), entry.ID)
	}
	for _, entry := range data.Districts {
		putFirst(cache.districts, scopedKey(entry.ParentID, nameKey(entry.Name)), entry.ID)
	}
	return cache
}

// putFirst keeps the lowest-ordered entry when names collide.
func putFirst(m map[string]int64, key string, id int64) {
	if key == "" {
		return
	}
	if _, exists := m[key]; !exists {
		m[key] = id
	}
}

func nameKey(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

func scopedKey(parentID int64, name string) string {
	return strconv.FormatInt(parentID, 10) + ":" + name
}
