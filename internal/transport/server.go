// Package transport serves the telephony media stream: a WebSocket endpoint
// speaking the JSON wire protocol (start / media / stop inbound, media /
// clear / mark outbound) and the HTTPS handshake endpoint that tells the
// telephony provider where to open the stream.
//
// Each accepted connection is one call. The read loop is the only reader;
// outbound frames are written from the session's worker goroutine and from
// barge-in on the read path, serialized by a write mutex.
package transport

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/RupeekSJ/ai-calling-Somil/internal/session"
)

// CallStart carries the metadata the provider sends on the start frame.
type CallStart struct {
	// CallID is the provider call SID, or a generated ID when absent.
	CallID string

	// From and To are the call legs when the provider includes them.
	From string
	To   string
}

// SessionFactory builds the per-call session once the start frame arrives.
// The returned session owns all dialog state for the call; the transport
// only shuttles frames.
type SessionFactory func(start CallStart, conn session.Transport) (*session.Session, error)

// Server accepts telephony media stream connections.
type Server struct {
	newSession SessionFactory
	log        *slog.Logger
	onCallEnd  func(callID string)
}

// ServerOption configures a [Server].
type ServerOption func(*Server)

// WithCallEndHook registers a callback invoked after a call's session has
// been torn down, whatever ended it. Used for call bookkeeping.
func WithCallEndHook(fn func(callID string)) ServerOption {
	return func(s *Server) {
		s.onCallEnd = fn
	}
}

// NewServer returns a Server creating sessions through factory.
func NewServer(factory SessionFactory, log *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{newSession: factory, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP upgrades to WebSocket and runs the call's read loop until the
// stop frame, a read error, or context cancellation.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session aborted")

	ctx := r.Context()
	wc := &wsConn{conn: conn}

	var sess *session.Session
	var startedID string
	defer func() {
		if sess != nil {
			sess.Close(context.WithoutCancel(ctx))
		}
		if startedID != "" && s.onCallEnd != nil {
			s.onCallEnd(startedID)
		}
	}()

	for {
		frame, err := readFrame(ctx, conn)
		if err != nil {
			// Transport disconnect is fatal for the call; the deferred
			// Close tears the session down.
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				errors.Is(err, context.Canceled) {
				return
			}
			s.log.Info("media stream read ended", slog.String("error", err.Error()))
			return
		}

		switch frame.Event {
		case eventStart:
			if sess != nil {
				s.log.Warn("duplicate start frame ignored")
				continue
			}
			start := callStart(frame.Start)
			sess, err = s.newSession(start, wc)
			if err != nil {
				s.log.Error("session create failed",
					slog.String("call_id", start.CallID),
					slog.String("error", err.Error()),
				)
				conn.Close(websocket.StatusInternalError, "session create failed")
				return
			}
			startedID = start.CallID
			sess.Start(ctx)

		case eventMedia:
			if sess == nil || frame.Media == nil {
				continue
			}
			sess.HandleMedia(ctx, frame.Media.Payload)

		case eventStop:
			if sess != nil {
				sess.HandleStop(ctx)
				sess = nil
			}
			conn.Close(websocket.StatusNormalClosure, "call complete")
			return

		default:
			s.log.Debug("unknown wire event", slog.String("event", frame.Event))
		}
	}
}

func readFrame(ctx context.Context, conn *websocket.Conn) (*wireFrame, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	frame := &wireFrame{}
	if err := json.Unmarshal(data, frame); err != nil {
		return nil, fmt.Errorf("transport: malformed frame: %w", err)
	}
	return frame, nil
}

// callStart prefers the provider's call SID and falls back to a random ID.
func callStart(start *startPayload) CallStart {
	if start == nil {
		return CallStart{CallID: randomCallID()}
	}
	cs := CallStart{CallID: start.CallSID, From: start.From, To: start.To}
	if cs.CallID == "" {
		cs.CallID = randomCallID()
	}
	return cs
}

func randomCallID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "call-unknown"
	}
	return "call-" + hex.EncodeToString(b[:])
}

// wsConn adapts a websocket connection to the session's Transport interface.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

var _ session.Transport = (*wsConn)(nil)

func (c *wsConn) writeFrame(ctx context.Context, frame wireFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("transport: encode frame: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// SendMedia implements session.Transport.
func (c *wsConn) SendMedia(ctx context.Context, payload string) error {
	return c.writeFrame(ctx, wireFrame{
		Event: eventMedia,
		Media: &mediaPayload{Payload: payload},
	})
}

// SendClear implements session.Transport.
func (c *wsConn) SendClear(ctx context.Context) error {
	return c.writeFrame(ctx, wireFrame{Event: eventClear})
}

// SendMark implements session.Transport.
func (c *wsConn) SendMark(ctx context.Context, name string) error {
	return c.writeFrame(ctx, wireFrame{
		Event: eventMark,
		Mark:  &markPayload{Name: name},
	})
}

// Hangup implements session.Transport.
func (c *wsConn) Hangup(ctx context.Context) error {
	return c.conn.Close(websocket.StatusNormalClosure, "dialog complete")
}
