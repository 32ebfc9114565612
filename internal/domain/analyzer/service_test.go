package analyzer

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

type mockRepo struct {
	analyzers map[uuid.UUID]*Analyzer
}

func newMockRepo() *mockRepo {
	return &mockRepo{analyzers: make(map[uuid.UUID]*Analyzer)}
}

func (m *mockRepo) Create(_ context.Context, a *Analyzer) error {
	a.ID = uuid.New()
	m.analyzers[a.ID] = a
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Analyzer, error) {
	a, ok := m.analyzers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (m *mockRepo) GetActiveByPlugin(_ context.Context, plugin string) (*Analyzer, error) {
	for _, a := range m.analyzers {
		if a.Plugin == plugin && a.Status == StatusActive {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, a *Analyzer) error {
	m.analyzers[a.ID] = a
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Analyzer, int, error) {
	var items []*Analyzer
	for _, a := range m.analyzers {
		items = append(items, a)
	}
	return items, len(items), nil
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	if err := svc.Create(ctx, &Analyzer{Plugin: "mindray-ba88a"}); err == nil {
		t.Error("expected error for missing name")
	}
	if err := svc.Create(ctx, &Analyzer{Name: "Chem 1"}); err == nil {
		t.Error("expected error for missing plugin")
	}

	a := &Analyzer{Name: "Chem 1", Plugin: "mindray-ba88a"}
	if err := svc.Create(ctx, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusInactive {
		t.Errorf("default status = %q, want inactive", a.Status)
	}
}

func TestActivate_OnePerPlugin(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	first := &Analyzer{Name: "Chem 1", Plugin: "mindray-ba88a"}
	second := &Analyzer{Name: "Chem 2", Plugin: "mindray-ba88a"}
	if err := svc.Create(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := svc.Create(ctx, second); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Activate(ctx, first.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.LastActivatedAt == nil {
		t.Error("expected last_activated_at to be stamped")
	}

	if _, err := svc.Activate(ctx, second.ID); err == nil {
		t.Fatal("expected conflict activating second analyzer for same plugin")
	}

	// Re-activating the already-active analyzer is a no-op.
	if _, err := svc.Activate(ctx, first.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Deactivate(ctx, first.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Activate(ctx, second.ID); err != nil {
		t.Fatalf("expected activation after deactivating first, got %v", err)
	}
}

func TestResolveActive(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	a := &Analyzer{Name: "Hema 1", Plugin: "sysmex-xn", Status: StatusActive}
	if err := svc.Create(ctx, a); err != nil {
		t.Fatal(err)
	}

	got, err := svc.ResolveActive(ctx, "sysmex-xn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != a.ID {
		t.Error("resolved wrong analyzer")
	}

	if _, err := svc.ResolveActive(ctx, "urit-8021"); err == nil {
		t.Error("expected ErrNotFound for unconfigured plugin")
	}
}
