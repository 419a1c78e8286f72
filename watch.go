// FILE: lixenwraith/classconfig/watch.go
package classconfig

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultMaxWatchers = 100 // Prevent resource exhaustion

// Notifications sent on watch channels besides class names
const (
	NotifyFileDeleted        = "file_deleted"
	NotifyPermissionsChanged = "permissions_changed"
	NotifyReloadTimeout      = "reload_timeout"
	NotifyReloadErrorPrefix  = "reload_error:"
)

// ReloadFunc rebuilds the declarations snapshot from its sources
type ReloadFunc func() (*Declarations, error)

// WatchOptions configures file watching behavior
type WatchOptions struct {
	// PollInterval for file stat checks (minimum 100ms)
	PollInterval time.Duration

	// Debounce duration to avoid rapid reloads
	Debounce time.Duration

	// MaxWatchers limits concurrent watch channels
	MaxWatchers int

	// ReloadTimeout for one reload
	ReloadTimeout time.Duration

	// VerifyPermissions skips reloads of files whose group/world permissions changed
	VerifyPermissions bool
}

// DefaultWatchOptions returns sensible defaults for file watching
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		PollInterval:      DefaultPollInterval,
		Debounce:          DefaultDebounce,
		MaxWatchers:       DefaultMaxWatchers,
		ReloadTimeout:     DefaultReloadTimeout,
		VerifyPermissions: true,
	}
}

// fileState is the last observed stat of one watched file
type fileState struct {
	modTime time.Time
	size    int64
	mode    os.FileMode
	missing bool
}

// watcher polls declaration files and swaps the resolver snapshot on change
type watcher struct {
	mu               sync.RWMutex
	ctx              context.Context
	cancel           context.CancelFunc
	opts             WatchOptions
	reload           ReloadFunc
	files            map[string]*fileState
	watching         atomic.Bool
	reloadInProgress atomic.Bool
	subscribers      map[int64]chan string
	subscriberID     atomic.Int64
	debounceTimer    *time.Timer
}

// WatchFiles polls files and, when any of them changes, rebuilds the
// snapshot with reload and swaps it in. Subscribers from Watch receive the
// name of every class whose effective configuration changed. An existing
// watcher is stopped first.
func (r *Resolver) WatchFiles(reload ReloadFunc, files []string, opts WatchOptions) error {
	if reload == nil {
		return fmt.Errorf("reload function cannot be nil")
	}
	if len(files) == 0 {
		return fmt.Errorf("no declaration files to watch")
	}

	if opts.PollInterval < MinPollInterval {
		opts.PollInterval = MinPollInterval
	}
	if opts.MaxWatchers <= 0 {
		opts.MaxWatchers = DefaultMaxWatchers
	}
	if opts.ReloadTimeout <= 0 {
		opts.ReloadTimeout = DefaultReloadTimeout
	}

	r.StopWatching()

	ctx, cancel := context.WithCancel(context.Background())
	w := &watcher{
		ctx:         ctx,
		cancel:      cancel,
		opts:        opts,
		reload:      reload,
		files:       make(map[string]*fileState, len(files)),
		subscribers: make(map[int64]chan string),
	}
	for _, path := range files {
		state := &fileState{}
		if info, err := os.Stat(path); err == nil {
			state.modTime = info.ModTime()
			state.size = info.Size()
			state.mode = info.Mode()
		} else {
			state.missing = true
		}
		w.files[path] = state
	}

	r.mutex.Lock()
	r.watcher = w
	r.mutex.Unlock()

	w.watching.Store(true)
	go w.watchLoop(r)

	r.logger.WithFields(logrus.Fields{
		"files":    files,
		"interval": opts.PollInterval,
	}).Info("watching declaration files")
	return nil
}

// Watch returns a channel receiving names of classes whose effective
// configuration changed on reload. Without an active watcher the channel is closed.
func (r *Resolver) Watch() <-chan string {
	r.mutex.RLock()
	w := r.watcher
	r.mutex.RUnlock()

	if w == nil || !w.watching.Load() {
		ch := make(chan string)
		close(ch)
		return ch
	}
	return w.subscribe()
}

// StopWatching stops the file watcher and closes its subscriber channels
func (r *Resolver) StopWatching() {
	r.mutex.Lock()
	w := r.watcher
	r.watcher = nil
	r.mutex.Unlock()

	if w != nil {
		w.stop()
	}
}

// IsWatching returns true if a file watcher is running
func (r *Resolver) IsWatching() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.watcher != nil && r.watcher.watching.Load()
}

// WatcherCount returns the number of active watch channels
func (r *Resolver) WatcherCount() int {
	r.mutex.RLock()
	w := r.watcher
	r.mutex.RUnlock()

	if w == nil {
		return 0
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.subscribers)
}

// watchLoop is the main file watching loop
func (w *watcher) watchLoop(r *Resolver) {
	defer w.watching.Store(false)

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.checkFiles(r)
		}
	}
}

// checkFiles stats every file and schedules a debounced reload on change
func (w *watcher) checkFiles(r *Resolver) {
	changed := false

	for path, state := range w.files {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) && !state.missing {
				state.missing = true
				w.notify(NotifyFileDeleted)
			}
			continue
		}

		if w.opts.VerifyPermissions && state.mode != 0 && (info.Mode()&0077) != (state.mode&0077) {
			// Group/world permissions changed; refuse to reload
			state.mode = info.Mode()
			w.notify(NotifyPermissionsChanged)
			r.logger.WithField("file", path).Warn("declaration file permissions changed, reload skipped")
			continue
		}

		if state.missing || !info.ModTime().Equal(state.modTime) || info.Size() != state.size {
			state.modTime = info.ModTime()
			state.size = info.Size()
			state.mode = info.Mode()
			state.missing = false
			changed = true
		}
	}

	if !changed {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.opts.Debounce, func() {
		w.performReload(r)
	})
}

// performReload rebuilds the snapshot and notifies changed classes
func (w *watcher) performReload(r *Resolver) {
	if !w.reloadInProgress.CompareAndSwap(false, true) {
		return
	}
	defer w.reloadInProgress.Store(false)

	ctx, cancel := context.WithTimeout(w.ctx, w.opts.ReloadTimeout)
	defer cancel()

	type result struct {
		decl *Declarations
		err  error
	}
	done := make(chan result, 1)
	go func() {
		decl, err := w.reload()
		done <- result{decl, err}
	}()

	select {
	case res := <-done:
		r.metrics.reload(res.err)
		if res.err != nil {
			r.logger.WithError(res.err).Warn("declaration reload failed, keeping current snapshot")
			w.notify(NotifyReloadErrorPrefix + res.err.Error())
			return
		}

		old := r.decl.Load()
		changed := changedClasses(r, old, res.decl)
		r.Swap(res.decl)
		for _, class := range changed {
			w.notify(class)
		}

	case <-ctx.Done():
		r.metrics.reload(ctx.Err())
		if w.ctx.Err() == nil {
			w.notify(NotifyReloadTimeout)
		}
	}
}

// changedClasses lists, sorted, the classes whose effective configuration
// differs between two snapshots. Classes failing to resolve in exactly one
// snapshot count as changed.
func changedClasses(r *Resolver, old, updated *Declarations) []string {
	if old.Fingerprint() == updated.Fingerprint() {
		return nil
	}

	resolveAll := func(d *Declarations) map[string]any {
		out := make(map[string]any, len(d.names))
		for _, class := range d.names {
			cfg, err := newPass(d, r.chain, r.logger, r.maxDepth).Resolve(class, 0)
			if err != nil {
				out[class] = err.Error()
				continue
			}
			out[class] = map[string]any(cfg)
		}
		return out
	}

	before := resolveAll(old)
	after := resolveAll(updated)

	var changed []string
	for class, cfg := range after {
		if prev, ok := before[class]; !ok || !reflect.DeepEqual(prev, cfg) {
			changed = append(changed, class)
		}
	}
	for class := range before {
		if _, ok := after[class]; !ok {
			changed = append(changed, class)
		}
	}
	sort.Strings(changed)
	return changed
}

// subscribe creates a new subscriber channel
func (w *watcher) subscribe() <-chan string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.subscribers) >= w.opts.MaxWatchers || w.ctx.Err() != nil {
		ch := make(chan string)
		close(ch)
		return ch
	}

	ch := make(chan string, 10)
	id := w.subscriberID.Add(1)
	w.subscribers[id] = ch

	go func() {
		<-w.ctx.Done()
		w.mu.Lock()
		delete(w.subscribers, id)
		close(ch)
		w.mu.Unlock()
	}()

	return ch
}

// notify sends a notification to all subscribers without blocking
func (w *watcher) notify(msg string) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.ctx.Err() != nil {
		return
	}
	for _, ch := range w.subscribers {
		select {
		case ch <- msg:
		default:
			// Subscriber is full; drop
		}
	}
}

// stop terminates the watcher
func (w *watcher) stop() {
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.mu.Unlock()

	w.cancel()

	deadline := time.Now().Add(ShutdownTimeout)
	for w.watching.Load() && time.Now().Before(deadline) {
		time.Sleep(SpinWaitInterval)
	}
}
