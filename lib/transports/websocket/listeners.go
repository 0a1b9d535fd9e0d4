package websocket

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// sessionRegistry tracks open connections so a shutdown can end them.
type sessionRegistry struct {
	sessions *xsync.MapOf[string, *session]
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: xsync.NewMapOf[string, *session]()}
}

func (r *sessionRegistry) add(s *session) {
	r.sessions.Store(s.id, s)
}

func (r *sessionRegistry) remove(s *session) {
	r.sessions.Delete(s.id)
}

func (r *sessionRegistry) size() int {
	return r.sessions.Size()
}

// closeAll closes every open session and returns how many there were.
func (r *sessionRegistry) closeAll() int {
	count := 0
	r.sessions.Range(func(id string, s *session) bool {
		if err := s.Close(); err != nil {
			s.log.Warnf("Error closing session: %v", err)
		}
		r.sessions.Delete(id)
		count++
		return true
	})
	return count
}
