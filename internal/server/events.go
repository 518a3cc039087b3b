package server

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/helewild/gridhud/internal/netutil"
)

const (
	monitorCheckInterval = 30 * time.Second
	monitorIdleTimeout   = 90 * time.Second
	monitorReadLimit     = 1 << 10
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// event is one entry on the operator feed. Monitors send {"kind":"ping"}
// periodically to stay connected and get a pong back.
type event struct {
	Kind        string `json:"kind"`
	AvatarID    string `json:"avatar_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
	Count       int    `json:"count,omitempty"`
	Time        string `json:"time,omitempty"`
}

type hub struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	id               string
	conn             *websocket.Conn
	writeMu          sync.Mutex
	lastSeenUnixNano atomic.Int64
	closing          atomic.Bool
}

func (s *session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *session) touch(t time.Time) {
	s.lastSeenUnixNano.Store(t.UnixNano())
}

func (s *session) lastSeen() time.Time {
	n := s.lastSeenUnixNano.Load()
	if n == 0 {
		return time.Unix(0, 0)
	}
	return time.Unix(0, n)
}

func (s *Server) nextSessionID() string {
	b := make([]byte, 0, 32)
	b = append(b, "mon_"...)
	b = strconv.AppendInt(b, time.Now().UnixNano(), 10)
	b = append(b, '_')
	b = strconv.AppendUint(b, s.sessionSeq.Add(1), 10)
	return string(b)
}

// handleEvents upgrades an admin-authorized request to a WebSocket
// subscribed to registration and scan events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.adminAuthorized(w, r) {
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "err", err)
		return
	}

	sess := &session{id: s.nextSessionID(), conn: conn}
	sess.touch(time.Now())
	s.hub.mu.Lock()
	s.hub.sessions[sess.id] = sess
	s.hub.mu.Unlock()
	s.log.Info("monitor connected", "session_id", sess.id, "client_ip", netutil.ClientIP(r))

	go s.monitorReadLoop(sess)
}

func (s *Server) monitorReadLoop(sess *session) {
	defer func() {
		_ = sess.conn.Close()
		s.hub.mu.Lock()
		delete(s.hub.sessions, sess.id)
		s.hub.mu.Unlock()
		s.log.Info("monitor disconnected", "session_id", sess.id)
	}()

	sess.conn.SetReadLimit(monitorReadLimit)
	for {
		var msg struct {
			Kind string `json:"kind"`
		}
		if err := sess.conn.ReadJSON(&msg); err != nil {
			return
		}
		sess.touch(time.Now())

		if msg.Kind == "ping" {
			_ = sess.writeJSON(event{Kind: "pong"})
		}
	}
}

// broadcast fans an event out to every connected monitor. Sessions whose
// write fails are closed; their read loops unregister them.
func (s *Server) broadcast(ev event) {
	s.hub.mu.RLock()
	sessions := make([]*session, 0, len(s.hub.sessions))
	for _, sess := range s.hub.sessions {
		sessions = append(sessions, sess)
	}
	s.hub.mu.RUnlock()

	for _, sess := range sessions {
		if err := sess.writeJSON(ev); err != nil {
			s.log.Debug("monitor write failed", "session_id", sess.id, "err", err)
			_ = sess.conn.Close()
		}
	}
}

func (s *Server) expireStaleMonitors() {
	now := time.Now()

	s.hub.mu.RLock()
	sessions := make([]*session, 0, len(s.hub.sessions))
	for _, sess := range s.hub.sessions {
		sessions = append(sessions, sess)
	}
	s.hub.mu.RUnlock()

	for _, sess := range sessions {
		last := sess.lastSeen()
		if now.Sub(last) <= monitorIdleTimeout {
			continue
		}
		if !sess.closing.CompareAndSwap(false, true) {
			continue
		}
		s.log.Warn("monitor heartbeat timeout", "session_id", sess.id, "last_seen", last.UTC().Format(time.RFC3339))
		_ = sess.conn.Close()
	}
}
