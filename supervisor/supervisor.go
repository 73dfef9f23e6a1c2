// Package supervisor keeps a server process running and relaunches it when
// its configuration or graph definitions change on disk.
//
// A restart terminates the running process (SIGTERM to its process group,
// a bounded wait, then SIGKILL) and starts the same command line again.
// Nothing is carried across restarts.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tailored-agentic-units/stategraph/observability"
)

var (
	ErrNoCommand = errors.New("supervisor: command is empty")
	ErrNoWatch   = errors.New("supervisor: nothing to watch")
)

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithObserver sets the observer receiving supervisor events.
func WithObserver(o observability.Observer) Option {
	return func(s *Supervisor) { s.observer = o }
}

// WithOutput redirects the child's stdout and stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(s *Supervisor) {
		s.stdout = stdout
		s.stderr = stderr
	}
}

// Supervisor runs one child process and restarts it on change.
type Supervisor struct {
	cfg      Config
	targets  []target
	observer observability.Observer
	stdout   io.Writer
	stderr   io.Writer
}

type target struct {
	path string
	dir  bool
}

// New validates cfg and resolves its watch paths. Watch paths that do not
// exist yet are watched through their parent directory.
func New(cfg *Config, opts ...Option) (*Supervisor, error) {
	if len(cfg.Command) == 0 || cfg.Command[0] == "" {
		return nil, ErrNoCommand
	}
	if len(cfg.Watch) == 0 {
		return nil, ErrNoWatch
	}

	s := &Supervisor{
		cfg:      *cfg,
		observer: observability.NoOpObserver{},
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, path := range cfg.Watch {
		if cfg.Dir != "" && !filepath.IsAbs(path) {
			path = filepath.Join(cfg.Dir, path)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve watch path %s: %w", path, err)
		}
		info, err := os.Stat(abs)
		s.targets = append(s.targets, target{path: abs, dir: err == nil && info.IsDir()})
	}
	return s, nil
}

// Run launches the command and restarts it on every debounced change until
// ctx is cancelled, then stops it within ShutdownTimeout. A child that exits
// on its own is relaunched on the next change.
func (s *Supervisor) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	for _, t := range s.targets {
		if err := s.watch(watcher, t); err != nil {
			return err
		}
	}

	proc, err := s.start(ctx)
	if err != nil {
		return err
	}

	var (
		debounce *time.Timer
		fire     <-chan time.Time
		changes  []string
	)

	for {
		var exited <-chan struct{}
		if proc != nil {
			exited = proc.done
		}

		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			s.stop(ctx, proc, s.cfg.ShutdownTimeout.Std())
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if !s.relevant(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				s.watchNewDir(ctx, watcher, event.Name)
			}

			changes = append(changes, event.String())
			if debounce == nil {
				debounce = time.NewTimer(s.cfg.Debounce.Std())
			} else {
				debounce.Reset(s.cfg.Debounce.Std())
			}
			fire = debounce.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			observability.Emit(ctx, s.observer, EventError, observability.LevelWarning, "supervisor.Run", map[string]any{
				"error": err.Error(),
			})

		case <-fire:
			fire = nil
			observability.Emit(ctx, s.observer, EventChange, observability.LevelInfo, "supervisor.Run", map[string]any{
				"changes": changes,
			})
			changes = nil

			s.stop(ctx, proc, s.cfg.RestartTimeout.Std())
			proc, err = s.start(ctx)
			if err != nil {
				return err
			}

		case <-exited:
			data := map[string]any{"pid": proc.pid()}
			if proc.err != nil {
				data["error"] = proc.err.Error()
			}
			observability.Emit(ctx, s.observer, EventExit, observability.LevelWarning, "supervisor.Run", data)
			proc = nil
		}
	}
}

func (s *Supervisor) start(ctx context.Context) (*process, error) {
	proc, err := launch(s.cfg.Command, s.cfg.Dir, s.stdout, s.stderr)
	if err != nil {
		return nil, err
	}
	observability.Emit(ctx, s.observer, EventStart, observability.LevelInfo, "supervisor.start", map[string]any{
		"pid":     proc.pid(),
		"command": strings.Join(s.cfg.Command, " "),
	})
	return proc, nil
}

func (s *Supervisor) stop(ctx context.Context, proc *process, timeout time.Duration) {
	if proc == nil {
		return
	}
	pid := proc.pid()
	if proc.stop(timeout) {
		observability.Emit(ctx, s.observer, EventKill, observability.LevelWarning, "supervisor.stop", map[string]any{
			"pid":     pid,
			"timeout": timeout.String(),
		})
		return
	}
	observability.Emit(ctx, s.observer, EventStop, observability.LevelInfo, "supervisor.stop", map[string]any{
		"pid": pid,
	})
}

// watch adds t to watcher. Files are watched through their directory so
// editors that replace files on save are still seen.
func (s *Supervisor) watch(watcher *fsnotify.Watcher, t target) error {
	if !t.dir {
		return watcher.Add(filepath.Dir(t.path))
	}
	return filepath.WalkDir(t.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := watcher.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
		}
		return nil
	})
}

// watchNewDir extends the watch to directories created under a watched tree.
func (s *Supervisor) watchNewDir(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	for i, t := range s.targets {
		if path == t.path && !t.dir {
			s.targets[i].dir = true
		}
	}
	if err := s.watch(watcher, target{path: path, dir: true}); err != nil {
		observability.Emit(ctx, s.observer, EventError, observability.LevelWarning, "supervisor.watch", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
		return
	}
	observability.Emit(ctx, s.observer, EventWatch, observability.LevelVerbose, "supervisor.watch", map[string]any{
		"path": path,
	})
}

// relevant reports whether name is a watched file or lies under a watched
// directory.
func (s *Supervisor) relevant(name string) bool {
	name = filepath.Clean(name)
	for _, t := range s.targets {
		if name == t.path {
			return true
		}
		if t.dir && strings.HasPrefix(name, t.path+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
