package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mwhitfield/loom/pkg/models"
)

func testWorker(t *testing.T, name string, caps ...string) *FuncWorker {
	t.Helper()

	w, err := Bind(
		Definition{Name: name, Role: name + " specialist", Capabilities: caps},
		func(ctx context.Context, request string, reqCtx map[string]any) (*models.WorkerResult, error) {
			return &models.WorkerResult{Content: "ok", Confidence: 0.5}, nil
		},
	)
	if err != nil {
		t.Fatalf("bind worker %s: %v", name, err)
	}
	return w
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := New()

	if err := r.Register(testWorker(t, "security", models.CapSecurity)); err != nil {
		t.Fatalf("register: %v", err)
	}

	w, ok := r.Get("security")
	if !ok {
		t.Fatal("expected worker to be found")
	}
	if w.Name() != "security" {
		t.Errorf("Name = %q", w.Name())
	}
	if _, ok := r.Get("absent"); ok {
		t.Error("expected miss for unregistered name")
	}
}

func TestRegistry_DuplicateNameRejected(t *testing.T) {
	r := New()

	if err := r.Register(testWorker(t, "dup", models.CapCode)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(testWorker(t, "dup", models.CapCode)); err == nil {
		t.Error("expected duplicate registration to fail")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
}

func TestRegistry_AllPreservesRegistrationOrder(t *testing.T) {
	r := New()
	names := []string{"alpha", "beta", "gamma"}
	for _, name := range names {
		if err := r.Register(testWorker(t, name, models.CapCode)); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("All() returned %d workers", len(all))
	}
	for i, w := range all {
		if w.Name() != names[i] {
			t.Errorf("All()[%d] = %q, want %q", i, w.Name(), names[i])
		}
	}
}

func TestRegistry_RecordResult(t *testing.T) {
	r := New()
	r.Register(testWorker(t, "w", models.CapCode))

	r.RecordResult("w", 100*time.Millisecond, 0.8, false)
	r.RecordResult("w", 200*time.Millisecond, 0.6, false)
	// Unknown workers are ignored.
	r.RecordResult("ghost", time.Second, 1, false)

	stats, ok := r.Stats("w")
	if !ok {
		t.Fatal("expected stats")
	}
	if stats.Invocations != 2 {
		t.Errorf("Invocations = %d, want 2", stats.Invocations)
	}
	if stats.AvgLatency != 150*time.Millisecond {
		t.Errorf("AvgLatency = %v", stats.AvgLatency)
	}
}

func TestBind_Validation(t *testing.T) {
	noop := func(ctx context.Context, request string, reqCtx map[string]any) (*models.WorkerResult, error) {
		return nil, nil
	}

	if _, err := Bind(Definition{Role: "nameless"}, noop); err == nil {
		t.Error("expected error for missing name")
	}
	if _, err := Bind(Definition{Name: "x"}, noop); err == nil {
		t.Error("expected error for missing capabilities")
	}
	if _, err := Bind(Definition{Name: "x", Capabilities: []string{models.CapCode}}, nil); err == nil {
		t.Error("expected error for nil process function")
	}
}

func TestLoadDefinitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workers.yaml")
	content := `workers:
  - name: architect
    role: System design specialist
    specialization: High-level structure and module boundaries
    capabilities: [architecture, code]
  - name: security
    role: Security reviewer
    capabilities: [security]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	defs, err := LoadDefinitions(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("loaded %d definitions, want 2", len(defs))
	}
	if defs[0].Name != "architect" || defs[0].Specialization == "" {
		t.Errorf("defs[0] = %+v", defs[0])
	}
	if len(defs[1].Capabilities) != 1 || defs[1].Capabilities[0] != models.CapSecurity {
		t.Errorf("defs[1].Capabilities = %v", defs[1].Capabilities)
	}
}

func TestLoadDefinitions_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workers.yaml")
	os.WriteFile(path, []byte("workers:\n  - role: nameless\n"), 0644)

	if _, err := LoadDefinitions(path); err == nil {
		t.Error("expected validation error for nameless worker")
	}
}

func TestRegisterDefinitions_SkipsUnboundWorkers(t *testing.T) {
	r := New()
	defs := []Definition{
		{Name: "known", Capabilities: []string{models.CapCode}},
		{Name: "unknown", Capabilities: []string{models.CapCode}},
	}

	err := r.RegisterDefinitions(defs, func(d Definition) ProcessFunc {
		if d.Name != "known" {
			return nil
		}
		return func(ctx context.Context, request string, reqCtx map[string]any) (*models.WorkerResult, error) {
			return &models.WorkerResult{Content: "hi"}, nil
		}
	})
	if err != nil {
		t.Fatalf("register definitions: %v", err)
	}

	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1 (unbound definitions skipped)", r.Count())
	}
}
