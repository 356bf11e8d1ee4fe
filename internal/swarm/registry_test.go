package swarm

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/trellison/waggle/internal/dispatch"
)

func noopExec(ctx context.Context, args map[string]any) (*dispatch.Output, error) {
	return &dispatch.Output{}, nil
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(Capability{Name: "search", Exec: noopExec}); err != nil {
		t.Fatalf("register: %v", err)
	}

	exec, ok := r.Lookup("search")
	if !ok || exec == nil {
		t.Fatal("expected registered executor")
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Error("unregistered name must not resolve")
	}
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Capability{Exec: noopExec}); err == nil {
		t.Error("expected error for empty capability name")
	}
}

func TestRegistryRejectsNilExecutor(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Capability{Name: "search"}); err == nil {
		t.Error("expected error for nil executor")
	}
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Capability{Name: "search", Exec: noopExec}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(Capability{Name: "search", Exec: noopExec}); err == nil {
		t.Error("expected error for duplicate registration")
	}
}

func TestRegistryGetReturnsDescriptor(t *testing.T) {
	r := NewRegistry()
	want := Capability{
		Name:           "fetch",
		Description:    "downloads a URL",
		Exec:           noopExec,
		DefaultTimeout: 30 * time.Second,
	}
	if err := r.Register(want); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, ok := r.Get("fetch")
	if !ok {
		t.Fatal("expected descriptor")
	}
	if got.Description != want.Description || got.DefaultTimeout != want.DefaultTimeout {
		t.Errorf("descriptor mismatch: %+v", got)
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(Capability{Name: name, Exec: noopExec}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	want := []string{"alpha", "mid", "zeta"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}
