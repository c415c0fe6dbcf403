package api

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"

	"github.com/sundial-labs/solarboard/internal/models"
)

const sessionCookie = "sb_session"

// sessionRegistry hands each browser session its own dataset collection.
// Collections are independent: concurrent sessions never share tables.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*models.Collection
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*models.Collection)}
}

// collection returns the collection for the request's session, creating
// the session (and setting its cookie) on first contact.
func (r *sessionRegistry) collection(w http.ResponseWriter, req *http.Request) *models.Collection {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cookie, err := req.Cookie(sessionCookie); err == nil {
		if c, ok := r.sessions[cookie.Value]; ok {
			return c
		}
	}

	id := newSessionID()
	c := models.NewCollection()
	r.sessions[id] = c
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
	})
	return c
}

func newSessionID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
