package notify

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/scrypster/kinstory/internal/engine"
)

// Watcher watches the events directory and republishes every event file it
// sees. Each file is consumed once.
type Watcher struct {
	dir     string
	pub     engine.EventPublisher
	log     *zap.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher for {dataPath}/events/.
func NewWatcher(dataPath string, pub engine.EventPublisher, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		dir:  filepath.Join(dataPath, eventsDir),
		pub:  pub,
		log:  log,
		done: make(chan struct{}),
	}
}

// Start drains any files written while nobody was watching, then watches
// for new ones. Call Stop to clean up.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return err
	}
	w.watcher = fw

	w.drainExisting()
	go w.loop()
	w.log.Debug("watching for change events", zap.String("dir", w.dir))
	return nil
}

// Stop shuts down the watcher. It is safe to call when Start failed.
func (w *Watcher) Stop() {
	if w.watcher == nil {
		return
	}
	_ = w.watcher.Close()
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Create|fsnotify.Rename) != 0 && strings.HasSuffix(evt.Name, eventExt) {
				w.processFile(evt.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("event watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) drainExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), eventExt) {
			names = append(names, entry.Name())
		}
	}
	// Names start with the write time.
	sort.Strings(names)
	for _, name := range names {
		w.processFile(filepath.Join(w.dir, name))
	}
}

func (w *Watcher) processFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // already consumed
	}
	if err := os.Remove(path); err != nil {
		return
	}

	var event engine.Event
	if err := json.Unmarshal(data, &event); err != nil {
		w.log.Warn("invalid event file", zap.String("file", filepath.Base(path)), zap.Error(err))
		return
	}
	if event.OwnerID == "" || event.Type == "" {
		return
	}
	w.pub.Publish(event)
}
