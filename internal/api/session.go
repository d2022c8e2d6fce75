package api

import (
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"moonwatch/internal/navigation"
	"moonwatch/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	sessionCookie = "moonwatch_session"
	sessionMaxAge = 30 * 24 * time.Hour
	sessionIdle   = 24 * time.Hour
)

// sessionEnvironment is one browser's navigation.Environment. The address
// bar is the last page URL the browser asked for, storage is the
// preferences table and notifications wait in a flash queue until the next
// page render.
type sessionEnvironment struct {
	id string
	db *storage.Database

	mu       sync.Mutex
	current  *url.URL
	replaced bool
	title    string
	notices  []string
	stored   map[string]string
}

func newSessionEnvironment(id string, db *storage.Database, base *url.URL) *sessionEnvironment {
	u := *base
	u.Path, u.RawPath, u.RawQuery, u.Fragment = "/", "", "", ""
	return &sessionEnvironment{id: id, db: db, current: &u, stored: map[string]string{}}
}

// Visit points the address bar at a requested page.
func (e *sessionEnvironment) Visit(u *url.URL) {
	e.mu.Lock()
	defer e.mu.Unlock()
	copied := *u
	e.current = &copied
	e.replaced = false
}

// TakeReplaced reports whether the controller rewrote the address bar
// since the last Visit.
func (e *sessionEnvironment) TakeReplaced() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.replaced
	e.replaced = false
	return r
}

func (e *sessionEnvironment) CurrentURL() *url.URL {
	e.mu.Lock()
	defer e.mu.Unlock()
	u := *e.current
	return &u
}

func (e *sessionEnvironment) ReplacePath(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	u := *e.current
	if p, err := url.Parse(path); err == nil {
		u.Path, u.RawPath = p.Path, p.RawPath
	} else {
		u.Path, u.RawPath = path, ""
	}
	u.RawQuery, u.Fragment = "", ""
	e.current = &u
	e.replaced = true
}

func (e *sessionEnvironment) GetStored(key string) (string, bool) {
	if e.db != nil {
		v, ok, err := e.db.GetPreference(e.id, key)
		if err == nil {
			return v, ok
		}
		log.Printf("Failed to read preference %s: %v", key, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.stored[key]
	return v, ok
}

func (e *sessionEnvironment) SetStored(key, value string) error {
	e.mu.Lock()
	e.stored[key] = value
	e.mu.Unlock()
	if e.db == nil {
		return nil
	}
	return e.db.SetPreference(e.id, key, value)
}

func (e *sessionEnvironment) SetTitle(title string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.title = title
}

func (e *sessionEnvironment) Notify(message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notices = append(e.notices, message)
}

// TakeNotices empties the flash queue.
func (e *sessionEnvironment) TakeNotices() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.notices
	e.notices = nil
	return n
}

type session struct {
	id       string
	env      *sessionEnvironment
	ctrl     *navigation.Controller
	lastSeen time.Time
}

type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session
	create   func(id string, env *sessionEnvironment) (*navigation.Controller, error)
	db       *storage.Database
	now      func() time.Time
}

// get returns the caller's session, starting a new one and setting the
// cookie when the request carries none or an unknown id.
func (r *sessionRegistry) get(c *gin.Context) (*session, error) {
	id, err := c.Cookie(sessionCookie)
	if err != nil || uuid.Validate(id) != nil {
		id = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.prune(now)

	if s, ok := r.sessions[id]; ok {
		s.lastSeen = now
		return s, nil
	}

	env := newSessionEnvironment(id, r.db, requestURL(c))
	ctrl, err := r.create(id, env)
	if err != nil {
		return nil, err
	}
	s := &session{id: id, env: env, ctrl: ctrl, lastSeen: now}
	r.sessions[id] = s

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, id, int(sessionMaxAge.Seconds()), "/", "", false, true)
	return s, nil
}

func (r *sessionRegistry) prune(now time.Time) {
	for id, s := range r.sessions {
		if now.Sub(s.lastSeen) > sessionIdle {
			delete(r.sessions, id)
		}
	}
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// requestURL rebuilds the absolute URL the browser used.
func requestURL(c *gin.Context) *url.URL {
	u := *c.Request.URL
	u.Scheme = "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		u.Scheme = "https"
	}
	u.Host = c.Request.Host
	return &u
}
