package inject

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/trellison/waggle/internal/planner"
)

type captureSink struct {
	mu    sync.Mutex
	specs []planner.TaskSpec
}

func (c *captureSink) Inject(specs []planner.TaskSpec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.specs = append(c.specs, specs...)
}

func (c *captureSink) all() []planner.TaskSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]planner.TaskSpec(nil), c.specs...)
}

func TestParseSpecFileObject(t *testing.T) {
	specs, err := ParseSpecFile([]byte(`{"id":"t1","description":"check logs","agent":"claude"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(specs) != 1 || specs[0].ID != "t1" || specs[0].Agent != "claude" {
		t.Errorf("unexpected specs: %+v", specs)
	}
}

func TestParseSpecFileArray(t *testing.T) {
	data := []byte(`[
		{"id":"a","description":"first"},
		{"id":"b","description":"second","dependencies":["a"]}
	]`)
	specs, err := ParseSpecFile(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
	if len(specs[1].DependsOn) != 1 || specs[1].DependsOn[0] != "a" {
		t.Errorf("dependencies not parsed: %+v", specs[1])
	}
}

func TestParseSpecFileDropsBlankDescriptions(t *testing.T) {
	data := []byte(`[{"id":"a","description":"keep"},{"id":"b","description":"  "}]`)
	specs, err := ParseSpecFile(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(specs) != 1 || specs[0].ID != "a" {
		t.Errorf("expected only described spec kept, got %+v", specs)
	}
}

func TestParseSpecFileMalformed(t *testing.T) {
	for _, data := range []string{"", "   ", "{not json", "[{]"} {
		if _, err := ParseSpecFile([]byte(data)); err == nil {
			t.Errorf("expected error for %q", data)
		}
	}
}

func TestHandleFileInjectsAndRemoves(t *testing.T) {
	dir := t.TempDir()
	sink := &captureSink{}
	w, err := New(dir, sink, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer w.Close()

	path := filepath.Join(dir, "tasks.json")
	if err := os.WriteFile(path, []byte(`{"id":"t1","description":"do it"}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	w.HandleFile(path)

	got := sink.all()
	if len(got) != 1 || got[0].ID != "t1" {
		t.Fatalf("expected injected spec, got %+v", got)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("consumed drop file must be removed")
	}
}

func TestHandleFileSetsAsideMalformed(t *testing.T) {
	dir := t.TempDir()
	sink := &captureSink{}
	w, err := New(dir, sink, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer w.Close()

	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`{broken`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	w.HandleFile(path)

	if len(sink.all()) != 0 {
		t.Error("malformed file must not inject")
	}
	if _, err := os.Stat(path + ".rejected"); err != nil {
		t.Errorf("expected rejected file set aside: %v", err)
	}
}

func TestHandleFileIgnoresNonSpecFiles(t *testing.T) {
	dir := t.TempDir()
	sink := &captureSink{}
	w, err := New(dir, sink, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer w.Close()

	for _, name := range []string{".hidden.json", "notes.txt", "old.json.rejected"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(`{"description":"x"}`), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		w.HandleFile(path)
	}

	if len(sink.all()) != 0 {
		t.Errorf("non-spec files must be ignored, got %+v", sink.all())
	}
}

func TestStartDrainsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "early.json")
	if err := os.WriteFile(path, []byte(`{"id":"early","description":"dropped before start"}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	sink := &captureSink{}
	w, err := New(dir, sink, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer w.Close()

	w.Start()

	got := sink.all()
	if len(got) != 1 || got[0].ID != "early" {
		t.Errorf("expected pre-existing file drained, got %+v", got)
	}
}
