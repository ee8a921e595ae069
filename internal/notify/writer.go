// Package notify carries change events between kinstory processes that
// share a data directory. kinstory-doctor drops one file per repair into
// {dataPath}/events and kinstory-web forwards them to its event hub, so
// connected clients see merges and edge cleanups made offline.
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/scrypster/kinstory/internal/engine"
)

const (
	eventsDir = "events"
	eventExt  = ".event"
)

// Writer writes event files to a shared directory.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter creates a writer that emits events to {dataPath}/events/.
func NewWriter(dataPath string) *Writer {
	return &Writer{dir: filepath.Join(dataPath, eventsDir), now: time.Now}
}

// Notify writes one event file. The file is written under a temporary name
// and renamed into place, so a watcher never reads a partial event.
func (w *Writer) Notify(t engine.EventType, owner string, id int64) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("notify: mkdir %s: %w", w.dir, err)
	}
	at := w.now().UTC()
	data, err := json.Marshal(engine.Event{Type: t, OwnerID: owner, ID: id, At: at})
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}

	name := fmt.Sprintf("%d-%s-%s-%d", at.UnixNano(), sanitize(string(t)), sanitize(owner), id)
	tmp := filepath.Join(w.dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("notify: write event: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(w.dir, name+eventExt)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("notify: publish event: %w", err)
	}
	return nil
}

// sanitize replaces characters unsafe for filenames.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '.', ' ':
			return '_'
		}
		return r
	}, s)
}
