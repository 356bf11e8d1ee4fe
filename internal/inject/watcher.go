// Package inject feeds externally authored tasks into a live swarm run via
// a drop directory. Operators (or other tools) write JSON task spec files
// into .waggle/inject/; the watcher parses each file and hands the specs to
// the running coordinator.
package inject

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/trellison/waggle/internal/planner"
)

// Sink receives parsed task specs. The swarm coordinator satisfies this.
type Sink interface {
	Inject(specs []planner.TaskSpec)
}

// Watcher monitors a drop directory for task spec files.
type Watcher struct {
	dir     string
	sink    Sink
	logf    func(format string, args ...interface{})
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// DirFor returns the default drop directory under a project root.
func DirFor(projectRoot string) string {
	return filepath.Join(projectRoot, ".waggle", "inject")
}

// New creates a Watcher on dir, creating the directory if needed. Files
// already present when the watcher starts are processed immediately.
func New(dir string, sink Sink, logf func(format string, args ...interface{})) (*Watcher, error) {
	if sink == nil {
		return nil, fmt.Errorf("inject: sink must not be nil")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create inject directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	if logf == nil {
		logf = func(format string, args ...interface{}) {}
	}

	w := &Watcher{
		dir:     dir,
		sink:    sink,
		logf:    logf,
		watcher: fsw,
		done:    make(chan struct{}),
	}
	return w, nil
}

// Start begins watching. It first drains files that were dropped before the
// watcher existed, then reacts to filesystem events until Close.
func (w *Watcher) Start() {
	w.drainExisting()
	go w.loop()
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.HandleFile(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logf("[inject] watcher error: %v", err)
		}
	}
}

// drainExisting processes spec files already sitting in the directory.
func (w *Watcher) drainExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logf("[inject] read dir: %v", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		w.HandleFile(filepath.Join(w.dir, e.Name()))
	}
}

// HandleFile parses one drop file and forwards its specs to the sink. The
// file is removed after a successful parse so it is only injected once;
// malformed files are left in place (renamed aside) for inspection.
func (w *Watcher) HandleFile(path string) {
	if !isSpecFile(path) {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		// Create events can race the writer; the follow-up Write event
		// retries.
		w.logf("[inject] read %s: %v", path, err)
		return
	}

	specs, err := ParseSpecFile(data)
	if err != nil {
		w.logf("[inject] malformed spec file %s: %v", path, err)
		if renameErr := os.Rename(path, path+".rejected"); renameErr != nil {
			w.logf("[inject] set aside %s: %v", path, renameErr)
		}
		return
	}
	if len(specs) == 0 {
		w.logf("[inject] spec file %s contained no tasks", path)
		os.Remove(path)
		return
	}

	w.sink.Inject(specs)
	w.logf("[inject] injected %d tasks from %s", len(specs), filepath.Base(path))
	if err := os.Remove(path); err != nil {
		w.logf("[inject] remove %s: %v", path, err)
	}
}

// isSpecFile reports whether the path looks like a task spec drop file.
// Rejected files and editor temp files are skipped.
func isSpecFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".rejected") {
		return false
	}
	return strings.HasSuffix(base, ".json")
}

// ParseSpecFile decodes a drop file: either a single task spec object or an
// array of them. Specs without a description are dropped.
func ParseSpecFile(data []byte) ([]planner.TaskSpec, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("empty file")
	}

	var specs []planner.TaskSpec
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &specs); err != nil {
			return nil, fmt.Errorf("parse spec array: %w", err)
		}
	} else {
		var one planner.TaskSpec
		if err := json.Unmarshal([]byte(trimmed), &one); err != nil {
			return nil, fmt.Errorf("parse spec object: %w", err)
		}
		specs = []planner.TaskSpec{one}
	}

	kept := specs[:0]
	for _, s := range specs {
		if strings.TrimSpace(s.Description) == "" {
			continue
		}
		kept = append(kept, s)
	}
	return kept, nil
}
