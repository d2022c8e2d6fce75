package navigation

import (
	"net/url"
	"sync"
)

// Environment is the controller's window onto the address bar, history,
// persisted storage, document title and user notifications.
type Environment interface {
	CurrentURL() *url.URL
	ReplacePath(path string)
	GetStored(key string) (string, bool)
	SetStored(key, value string) error
	SetTitle(title string)
	Notify(message string)
}

// MemoryEnvironment keeps everything in memory. It serves tests and the
// command line.
type MemoryEnvironment struct {
	mu            sync.Mutex
	current       *url.URL
	stored        map[string]string
	title         string
	notifications []string
	replaced      []string
}

func NewMemoryEnvironment(rawURL string) (*MemoryEnvironment, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return &MemoryEnvironment{current: u, stored: map[string]string{}}, nil
}

func (e *MemoryEnvironment) CurrentURL() *url.URL {
	e.mu.Lock()
	defer e.mu.Unlock()
	u := *e.current
	return &u
}

// SetURL moves the address bar without recording a history replacement,
// as a link click or popstate would.
func (e *MemoryEnvironment) SetURL(u *url.URL) {
	e.mu.Lock()
	defer e.mu.Unlock()
	copied := *u
	e.current = &copied
}

// ReplacePath takes an escaped path, as produced by calendar.BuildPath.
func (e *MemoryEnvironment) ReplacePath(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	u := *e.current
	if p, err := url.Parse(path); err == nil {
		u.Path, u.RawPath = p.Path, p.RawPath
	} else {
		u.Path, u.RawPath = path, ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	e.current = &u
	e.replaced = append(e.replaced, path)
}

func (e *MemoryEnvironment) GetStored(key string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.stored[key]
	return v, ok
}

func (e *MemoryEnvironment) SetStored(key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stored[key] = value
	return nil
}

func (e *MemoryEnvironment) SetTitle(title string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.title = title
}

func (e *MemoryEnvironment) Title() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.title
}

func (e *MemoryEnvironment) Notify(message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifications = append(e.notifications, message)
}

func (e *MemoryEnvironment) Notifications() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.notifications...)
}

func (e *MemoryEnvironment) ReplacedPaths() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.replaced...)
}
