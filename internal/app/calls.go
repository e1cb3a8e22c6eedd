package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/RupeekSJ/ai-calling-Somil/internal/session"
)

// ErrTooManyCalls is returned by Add when the concurrent call limit is hit.
// The transport reports it to the provider as a failed session create, which
// ends the call instead of silently dropping audio.
var ErrTooManyCalls = errors.New("app: concurrent call limit reached")

// CallInfo holds metadata about one active call.
type CallInfo struct {
	// CallID is the provider call SID, or a generated ID when absent.
	CallID string `json:"call_id"`

	// From is the caller's number when the start frame carried one.
	From string `json:"from,omitempty"`

	// StartedAt is when the media stream's start frame arrived.
	StartedAt time.Time `json:"started_at"`
}

// CallManager tracks active calls for admin visibility and shutdown drain.
// All exported methods are safe for concurrent use.
type CallManager struct {
	maxCalls int

	mu    sync.Mutex
	calls map[string]*activeCall
}

type activeCall struct {
	info CallInfo
	sess *session.Session
}

// NewCallManager creates a CallManager. maxCalls of zero means unlimited.
func NewCallManager(maxCalls int) *CallManager {
	return &CallManager{
		maxCalls: maxCalls,
		calls:    make(map[string]*activeCall),
	}
}

// Add registers a starting call. Returns [ErrTooManyCalls] at the limit.
// A duplicate call ID replaces the stale entry; the provider never runs two
// streams for one SID, so the old entry is a leftover from an unclean end.
func (cm *CallManager) Add(info CallInfo, sess *session.Session) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, stale := cm.calls[info.CallID]; !stale && cm.maxCalls > 0 && len(cm.calls) >= cm.maxCalls {
		return ErrTooManyCalls
	}
	cm.calls[info.CallID] = &activeCall{info: info, sess: sess}
	return nil
}

// Remove unregisters a finished call. Unknown IDs are ignored.
func (cm *CallManager) Remove(callID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.calls, callID)
}

// Len reports the number of active calls.
func (cm *CallManager) Len() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.calls)
}

// Active returns a snapshot of active calls ordered by start time.
func (cm *CallManager) Active() []CallInfo {
	cm.mu.Lock()
	infos := make([]CallInfo, 0, len(cm.calls))
	for _, c := range cm.calls {
		infos = append(infos, c.info)
	}
	cm.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

// CloseAll tears down every active call. Used during server shutdown; the
// session Close is idempotent, so racing with natural call teardown is fine.
func (cm *CallManager) CloseAll(ctx context.Context) {
	cm.mu.Lock()
	active := make([]*activeCall, 0, len(cm.calls))
	for _, c := range cm.calls {
		active = append(active, c)
	}
	cm.calls = make(map[string]*activeCall)
	cm.mu.Unlock()

	for _, c := range active {
		c.sess.Close(ctx)
	}
}

// Handler serves the active call list as JSON.
func (cm *CallManager) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		body := struct {
			Count int        `json:"count"`
			Calls []CallInfo `json:"calls"`
		}{
			Calls: cm.Active(),
		}
		body.Count = len(body.Calls)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
		}
	})
}
