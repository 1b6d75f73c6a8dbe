package cli

import (
	"context"
	"errors"
	"testing"

	"training-progress-service/internal/domain"
	"training-progress-service/internal/infra/memory"
)

type failingLoader struct{ err error }

func (f failingLoader) LoadCatalog(context.Context, string) (*domain.Catalog, error) {
	return nil, f.err
}

func TestChainLoaderFallsThroughMissingCatalogs(t *testing.T) {
	want := (&domain.Catalog{ID: "onboarding"}).Index()
	chain := chainLoader{memory.NewStaticCatalogLoader(), memory.NewStaticCatalogLoader(want)}

	got, err := chain.LoadCatalog(context.Background(), "onboarding")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("expected catalog from second loader")
	}
	if _, err := chain.LoadCatalog(context.Background(), "missing"); !errors.Is(err, domain.ErrCatalogNotFound) {
		t.Fatalf("expected ErrCatalogNotFound, got %v", err)
	}
}

func TestChainLoaderStopsOnOtherErrors(t *testing.T) {
	boom := errors.New("connection refused")
	chain := chainLoader{failingLoader{err: boom}, memory.NewStaticCatalogLoader((&domain.Catalog{ID: "x"}).Index())}
	if _, err := chain.LoadCatalog(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
}
