package auth

import (
	"sync"

	"github.com/hbarro/lares/internal/common"
	"github.com/hbarro/lares/internal/interfaces"
)

// SessionWatcher fans auth-state events out to subscribers. The server
// publishes an event on every authenticated sign-in; the app layer
// subscribes to run session-start maintenance.
type SessionWatcher struct {
	mu     sync.Mutex
	subs   map[int]chan interfaces.AuthState
	nextID int
	logger *common.Logger
}

// NewSessionWatcher creates a new session watcher.
func NewSessionWatcher(logger *common.Logger) *SessionWatcher {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &SessionWatcher{
		subs:   make(map[int]chan interfaces.AuthState),
		logger: logger,
	}
}

// Subscribe registers a new subscriber. The returned cancel func removes
// the subscription and closes the channel.
func (w *SessionWatcher) Subscribe() (<-chan interfaces.AuthState, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++
	ch := make(chan interfaces.AuthState, 16)
	w.subs[id] = ch

	cancel := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if sub, ok := w.subs[id]; ok {
			delete(w.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber. Slow subscribers with a
// full buffer are skipped rather than blocking the publisher.
func (w *SessionWatcher) Publish(state interfaces.AuthState) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for id, ch := range w.subs {
		select {
		case ch <- state:
		default:
			w.logger.Warn().Int("subscriber", id).Str("user", state.UserID).Msg("auth event dropped for slow subscriber")
		}
	}
}

// Ensure SessionWatcher implements AuthWatcher
var _ interfaces.AuthWatcher = (*SessionWatcher)(nil)
