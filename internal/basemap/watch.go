package basemap

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a style file whenever it changes on disk. It only parses;
// applying the new style is left to the render loop.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	styles   chan *Style
	errs     chan error
	done     chan struct{}
	debounce time.Duration
	logger   *zap.Logger
}

// Watch starts watching path. The directory is watched rather than the
// file so that editors replacing the file by rename are noticed.
func Watch(path string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		fsw:      fsw,
		styles:   make(chan *Style),
		errs:     make(chan error),
		done:     make(chan struct{}),
		debounce: 100 * time.Millisecond,
		logger:   logger.Named("watch"),
	}
	go w.loop()
	return w, nil
}

// Styles delivers each successfully parsed revision of the file.
func (w *Watcher) Styles() <-chan *Style { return w.styles }

// Errors delivers parse and watch failures.
func (w *Watcher) Errors() <-chan error { return w.errs }

func (w *Watcher) loop() {
	var fire <-chan time.Time
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				fire = time.After(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.send(nil, err)
		case <-fire:
			fire = nil
			s, err := LoadStyle(w.path)
			if err != nil {
				w.logger.Warn("style reload failed", zap.String("path", w.path), zap.Error(err))
			} else {
				w.logger.Info("style changed", zap.String("path", w.path))
			}
			w.send(s, err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) send(s *Style, err error) {
	if err != nil {
		select {
		case w.errs <- err:
		case <-w.done:
		}
		return
	}
	select {
	case w.styles <- s:
	case <-w.done:
	}
}

func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	return w.fsw.Close()
}
