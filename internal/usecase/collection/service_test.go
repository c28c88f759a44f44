package collection

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/kailas-cloud/ragd/internal/domain"
)

// --- Mocks ---

type mockRepo struct {
	names []string
	err   error
}

func (m *mockRepo) ListCollections(_ context.Context) ([]string, error) {
	return m.names, m.err
}

// --- Tests ---

func TestList_IncludesDefault(t *testing.T) {
	svc := New(&mockRepo{names: []string{"faq", "policies"}}, "airline_docs_pg")
	got, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"airline_docs_pg", "faq", "policies"}
	if !slices.Equal(got.Collections, want) {
		t.Errorf("collections = %v, want %v", got.Collections, want)
	}
	if got.Default != "airline_docs_pg" {
		t.Errorf("default = %q", got.Default)
	}
}

func TestList_Deduplicates(t *testing.T) {
	svc := New(&mockRepo{names: []string{"b", "airline_docs_pg", "b", ""}}, "")
	got, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{domain.DefaultCollection, "b"}
	if !slices.Equal(got.Collections, want) {
		t.Errorf("collections = %v, want %v", got.Collections, want)
	}
}

func TestList_Empty(t *testing.T) {
	svc := New(&mockRepo{}, "docs")
	got, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !slices.Equal(got.Collections, []string{"docs"}) {
		t.Errorf("collections = %v", got.Collections)
	}
}

func TestList_StoreError(t *testing.T) {
	svc := New(&mockRepo{err: errors.New("conn reset")}, "docs")
	_, err := svc.List(context.Background())
	if !errors.Is(err, domain.ErrDependencyUnavailable) {
		t.Errorf("expected ErrDependencyUnavailable, got %v", err)
	}
}
