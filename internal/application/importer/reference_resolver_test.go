package importer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	app "github.com/mohammadpnp/site-import/internal/application/importer"
	domain "github.com/mohammadpnp/site-import/internal/domain/project"
)

func TestReferenceResolverResolvesScopedNames(t *testing.T) {
	t.Parallel()

	data := referenceData()
	data.Municipalities = append(data.Municipalities, domain.ReferenceEntry{ID: 200, Name: "Calamba", ParentID: 11})
	data.Barangays = append(data.Barangays, domain.ReferenceEntry{ID: 2000, Name: "Real", ParentID: 200})

	resolver := app.NewReferenceResolver(&fakeReferenceLoader{data: data}, time.Minute)
	if err := resolver.RefreshIfStale(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	ids, messages := resolver.Resolve(domain.ParsedRow{
		ProjectName:  " cctv installation ",
		Province:     "BATANGAS",
		Municipality: "calamba",
		Barangay:     "Real",
		District:     "District 2",
	})
	if len(messages) != 0 {
		t.Fatalf("expected no messages, got %v", messages)
	}
	if ids.ProjectTypeID != 1 || ids.ProvinceID != 11 || ids.MunicipalityID != 200 {
		t.Fatalf("unexpected ids: %+v", ids)
	}
	if ids.BarangayID == nil || *ids.BarangayID != 2000 {
		t.Fatalf("expected barangay scoped to municipality, got %v", ids.BarangayID)
	}
	if ids.DistrictID != nil {
		t.Fatalf("district belongs to another province, got %v", *ids.DistrictID)
	}
}

func TestReferenceResolverReportsMissingRequiredNames(t *testing.T) {
	t.Parallel()

	resolver := app.NewReferenceResolver(&fakeReferenceLoader{data: referenceData()}, time.Minute)
	if err := resolver.RefreshIfStale(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	_, messages := resolver.Resolve(domain.ParsedRow{
		ProjectName:  "Drone Survey",
		Province:     "Laguna",
		Municipality: "Atlantis",
		Barangay:     "Unknown",
	})
	want := []string{`Project type "Drone Survey" not found`, `Municipality "Atlantis" not found`}
	if len(messages) != len(want) || messages[0] != want[0] || messages[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, messages)
	}
}

func TestReferenceResolverCachesUntilStale(t *testing.T) {
	t.Parallel()

	loader := &fakeReferenceLoader{data: referenceData()}
	resolver := app.NewReferenceResolver(loader, time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := resolver.RefreshIfStale(ctx); err != nil {
				t.Errorf("refresh: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := loader.loadCalls(); got != 1 {
		t.Fatalf("expected a single load, got %d", got)
	}
	if resolver.RefreshedAt().IsZero() {
		t.Fatal("expected refresh time to be set")
	}

	resolver.Invalidate()
	if err := resolver.RefreshIfStale(ctx); err != nil {
		t.Fatalf("refresh after invalidate: %v", err)
	}
	if got := loader.loadCalls(); got != 2 {
		t.Fatalf("expected reload after invalidate, got %d loads", got)
	}
}

func TestReferenceResolverLoadFailure(t *testing.T) {
	t.Parallel()

	resolver := app.NewReferenceResolver(&fakeReferenceLoader{err: errors.New("db down")}, time.Minute)

	if err := resolver.RefreshIfStale(context.Background()); !errors.Is(err, app.ErrReferenceData) {
		t.Fatalf("expected ErrReferenceData, got %v", err)
	}
	if _, messages := resolver.Resolve(domain.ParsedRow{}); len(messages) != 1 {
		t.Fatalf("expected not-loaded message, got %v", messages)
	}
}
