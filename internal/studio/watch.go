package studio

import "sync"

type watcher struct {
	ch chan Session
}

// watchers fans session snapshots out to subscribers. Each subscriber sees the
// latest snapshot; older undelivered ones are dropped.
type watchers struct {
	mu   sync.Mutex
	subs map[string]map[*watcher]struct{}
}

func newWatchers() *watchers {
	return &watchers{subs: make(map[string]map[*watcher]struct{})}
}

func (w *watchers) subscribe(initial Session) (*watcher, func()) {
	id := initial.ID
	sub := &watcher{ch: make(chan Session, 1)}
	sub.ch <- initial
	w.mu.Lock()
	if w.subs[id] == nil {
		w.subs[id] = make(map[*watcher]struct{})
	}
	w.subs[id][sub] = struct{}{}
	w.mu.Unlock()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(w.subs[id], sub)
			if len(w.subs[id]) == 0 {
				delete(w.subs, id)
			}
			close(sub.ch)
		})
	}
}

func (w *watchers) publish(s Session) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for sub := range w.subs[s.ID] {
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- s
	}
}
