package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var defaultExts = map[string]struct{}{
	"pdf":  {},
	"xlsx": {},
}

type Config struct {
	Dir         string
	AllowedExts map[string]struct{}
	// InitialScan emits files already sitting in Dir on start.
	InitialScan bool
	// Debounce is the quiet period a file needs before it is handed over.
	Debounce time.Duration
}

type Handler func(ctx context.Context, path string)

// Watcher feeds new invoice files in a single directory to a handler, one at a
// time. Sub-directories (processed/, failed/) are not watched.
type Watcher struct {
	cfg Config
}

func New(cfg Config) (*Watcher, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("watch dir is empty")
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = defaultExts
	}
	if cfg.Debounce < 0 {
		cfg.Debounce = 0
	}
	return &Watcher{cfg: cfg}, nil
}

// Run blocks until ctx is cancelled and the in-flight handler returns.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}
	slog.Info("watcher_started", "dir", w.cfg.Dir, "debounce", w.cfg.Debounce.String())

	ready := make(chan string, 256)
	jobs := make(chan string, 256)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for path := range jobs {
			if ctx.Err() != nil {
				continue
			}
			handle(ctx, path)
		}
	}()
	defer func() {
		close(jobs)
		wg.Wait()
	}()

	if w.cfg.InitialScan {
		if err := w.scan(jobs); err != nil {
			slog.Warn("watcher_initial_scan_failed", "dir", w.cfg.Dir, "error", err)
		}
	}

	timers := map[string]*time.Timer{}
	defer func() {
		for _, timer := range timers {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			path := event.Name
			if timer, ok := timers[path]; ok {
				timer.Reset(w.cfg.Debounce)
				continue
			}
			timers[path] = time.AfterFunc(w.cfg.Debounce, func() {
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})
		case path := <-ready:
			delete(timers, path)
			if !isRegularFile(path) {
				continue
			}
			select {
			case jobs <- path:
			case <-ctx.Done():
				return nil
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher_error", "dir", w.cfg.Dir, "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	if filepath.Dir(event.Name) != filepath.Clean(w.cfg.Dir) {
		return false
	}
	return allowed(event.Name, w.cfg.AllowedExts)
}

func (w *Watcher) scan(jobs chan<- string) error {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.cfg.Dir, entry.Name())
		if !allowed(path, w.cfg.AllowedExts) {
			continue
		}
		select {
		case jobs <- path:
		default:
			slog.Warn("watcher_queue_full", "path", path)
		}
	}
	return nil
}

func allowed(path string, exts map[string]struct{}) bool {
	base := filepath.Base(path)
	// Editors and browsers write partial downloads under dot-names.
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := exts[ext]
	return ok
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
