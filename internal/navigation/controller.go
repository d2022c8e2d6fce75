package navigation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"moonwatch/internal/astro"
	"moonwatch/internal/calendar"
	"moonwatch/internal/moon"
)

type Config struct {
	Source          astro.Source
	Geocoder        astro.Geocoder
	Environment     Environment
	DefaultLocation string
	Locale          string
	MonthStyle      calendar.MonthStyle
	Sprite          moon.Sprite

	GeolocationTimeout time.Duration
	Now                func() time.Time

	// OnObservation runs after every successful fetch, outside the lock.
	OnObservation func(astro.Observation)
}

// Controller owns the active date and location of one viewer. It keeps the
// address bar, the stored location and the title in step with the last
// observation that was fetched successfully.
//
// Every fetch carries a token. Only the result of the most recent fetch is
// applied; anything older is dropped with ErrStale.
type Controller struct {
	cfg Config
	env Environment

	mu            sync.Mutex
	state         State
	observation   *astro.Observation
	committedDate calendar.Date
	committedPath string
	title         string
	token         uint64
	fetching      bool

	buildPath func(calendar.Date, string) string
}

func New(cfg Config) (*Controller, error) {
	if cfg.Source == nil {
		return nil, errors.New("navigation: source is required")
	}
	if cfg.Environment == nil {
		return nil, errors.New("navigation: environment is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Locale == "" {
		cfg.Locale = "en"
	}
	if cfg.MonthStyle == "" {
		cfg.MonthStyle = calendar.MonthLong
	}
	if cfg.Sprite.Frames <= 0 {
		cfg.Sprite = moon.DefaultSprite()
	}
	if cfg.GeolocationTimeout <= 0 {
		cfg.GeolocationTimeout = astro.DefaultGeolocationTimeout
	}

	return &Controller{
		cfg:       cfg,
		env:       cfg.Environment,
		state:     State{Status: Idle},
		buildPath: calendar.BuildPath,
	}, nil
}

// Init reads the date and location from the environment's current URL and
// fetches them. Location comes from ?location=, then the path, then the
// stored location, then the configured default. An unusable date sends the
// address bar back to "/".
func (c *Controller) Init(ctx context.Context) error {
	u := c.env.CurrentURL()
	path := u.EscapedPath()
	date, reset := calendar.ParseActiveDate(calendar.SplitPath(path), c.cfg.Now())

	fallback := c.cfg.DefaultLocation
	if stored, ok := c.env.GetStored(StorageKeyLocation); ok && strings.TrimSpace(stored) != "" {
		fallback = stored
	}

	location := strings.TrimSpace(u.Query().Get("location"))
	if location == "" && !reset {
		location = calendar.RouteLocation(path)
	}
	if location == "" {
		location = fallback
	}

	if reset {
		path = "/"
		c.env.ReplacePath(path)
	} else if path == "" {
		path = "/"
	}

	c.mu.Lock()
	if c.observation != nil && !c.fetching &&
		calendar.IsSameDate(date, c.committedDate) && strings.EqualFold(location, c.state.Location) {
		c.committedPath = path
		c.mu.Unlock()
		return nil
	}
	if c.observation == nil {
		c.state.PreviousLocation = fallback
	}
	c.mu.Unlock()

	return c.load(ctx, date, location, path)
}

// Navigate moves the active date one day in dir.
func (c *Controller) Navigate(ctx context.Context, dir Direction) error {
	c.mu.Lock()
	date, location := c.state.ActiveDate, c.state.Location
	c.mu.Unlock()

	if dir == Prev {
		date = calendar.Prev(date)
	} else {
		date = calendar.Next(date)
	}

	path, err := c.resolve(c.buildPath(date, location))
	if err != nil {
		log.Printf("Ignoring navigation %s: %v", dir, err)
		return err
	}
	c.env.ReplacePath(path)
	return c.load(ctx, date, location, path)
}

// ChangeLocation fetches the active date for a new location. Asking for the
// location already in effect, in any letter case, does nothing.
func (c *Controller) ChangeLocation(ctx context.Context, location string) error {
	location = strings.TrimSpace(location)

	c.mu.Lock()
	date, current := c.state.ActiveDate, c.state.Location
	c.mu.Unlock()

	if location == "" || strings.EqualFold(location, current) {
		return nil
	}

	path, err := c.resolve(c.buildPath(date, location))
	if err != nil {
		log.Printf("Ignoring location change to %q: %v", location, err)
		return err
	}
	c.env.ReplacePath(path)
	return c.load(ctx, date, location, path)
}

// Reset returns to today at "/" and refetches the current location.
func (c *Controller) Reset(ctx context.Context) error {
	today := calendar.Today(c.cfg.Now())

	c.mu.Lock()
	location := c.state.Location
	c.mu.Unlock()

	c.env.ReplacePath("/")
	return c.load(ctx, today, location, "/")
}

// Geolocate asks locator for a position once, turns it into a place name
// and switches to it. On failure the location is left as it was.
func (c *Controller) Geolocate(ctx context.Context, locator astro.Geolocator, timeout time.Duration) error {
	if c.cfg.Geocoder == nil {
		return fmt.Errorf("%w: no reverse geocoder configured", ErrGeolocation)
	}
	if timeout <= 0 {
		timeout = c.cfg.GeolocationTimeout
	}

	c.mu.Lock()
	c.state.Loading = true
	c.mu.Unlock()

	var label string
	pos, err := astro.LocateWithin(ctx, locator, timeout)
	if err == nil {
		label, err = c.cfg.Geocoder.ReverseGeocode(ctx, pos.Latitude, pos.Longitude)
	}

	c.mu.Lock()
	c.state.Loading = c.fetching
	if err != nil {
		c.env.Notify("Could not determine your location.")
	}
	c.mu.Unlock()

	if err != nil {
		log.Printf("Geolocation failed: %v", err)
		return fmt.Errorf("%w: %w", ErrGeolocation, err)
	}
	return c.ChangeLocation(ctx, label)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State: c.state,
		Path:  c.env.CurrentURL().EscapedPath(),
		Title: c.title,
	}
	if s.Path == "" {
		s.Path = "/"
	}
	if c.observation != nil {
		o := *c.observation
		s.Observation = &o
		s.SpriteFrame = c.cfg.Sprite.Frame(o.CyclePercent)
	}
	return s
}

// resolve checks that target stays on the current origin and returns its
// escaped path.
func (c *Controller) resolve(target string) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCrossOrigin, err)
	}
	current := c.env.CurrentURL()
	resolved := current.ResolveReference(ref)
	if resolved.Scheme != current.Scheme || resolved.Host != current.Host {
		return "", fmt.Errorf("%w: %s", ErrCrossOrigin, resolved.Redacted())
	}
	return resolved.EscapedPath(), nil
}

func (c *Controller) load(ctx context.Context, date calendar.Date, location, path string) error {
	c.mu.Lock()
	c.token++
	token := c.token
	c.fetching = true
	c.state.Status = Loading
	c.state.Loading = true
	c.state.ActiveDate = date
	c.state.Location = location
	c.state.IsToday = calendar.IsSameDate(date, calendar.Today(c.cfg.Now()))
	c.mu.Unlock()

	obs, err := c.cfg.Source.Fetch(ctx, date, location)
	return c.finish(token, path, obs, err)
}

func (c *Controller) finish(token uint64, path string, obs *astro.Observation, fetchErr error) error {
	c.mu.Lock()
	if token != c.token {
		c.mu.Unlock()
		return ErrStale
	}
	c.fetching = false
	c.state.Loading = false

	if fetchErr != nil || obs == nil {
		if fetchErr == nil {
			fetchErr = astro.ErrNoData
		}
		failed := c.state.Location
		c.state.Location = c.state.PreviousLocation
		if c.observation != nil {
			c.state.Status = Ready
			c.state.ActiveDate = c.committedDate
			c.state.IsToday = calendar.IsSameDate(c.committedDate, calendar.Today(c.cfg.Now()))
			if path != c.committedPath {
				c.env.ReplacePath(c.committedPath)
			}
		} else {
			// Nothing was ever shown, so the address bar goes back to "/".
			c.state.Status = Failed
			c.state.ActiveDate = calendar.Today(c.cfg.Now())
			c.state.IsToday = true
			if path != "/" {
				c.env.ReplacePath("/")
			}
		}
		c.env.Notify(fmt.Sprintf("No moon data found for %s.", failed))
		c.mu.Unlock()

		log.Printf("Fetch for %q failed: %v", failed, fetchErr)
		return fmt.Errorf("%w (%s): %w", ErrFetchFailed, failed, fetchErr)
	}

	o := *obs
	if err := o.ApplyPhase(); err != nil {
		log.Printf("Showing %q as new moon: %v", o.PhaseName, err)
	}
	c.observation = &o
	c.committedDate = c.state.ActiveDate
	c.committedPath = path
	c.state.PreviousLocation = c.state.Location
	c.state.Status = Ready

	if err := c.env.SetStored(StorageKeyLocation, c.state.Location); err != nil {
		log.Printf("Failed to persist location: %v", err)
	}
	c.title = c.titleFor(c.state, o)
	c.env.SetTitle(c.title)

	hook := c.cfg.OnObservation
	c.mu.Unlock()

	if hook != nil {
		hook(o)
	}
	return nil
}

// titleFor names the place the way the data source resolved it, falling
// back to the location as typed or routed.
func (c *Controller) titleFor(s State, o astro.Observation) string {
	name := s.Location
	if o.PlaceName != "" {
		name = o.PlaceName
	}
	if s.IsToday {
		return "Moon today · " + name
	}
	return fmt.Sprintf("Moon · %s · %s", calendar.FormatForDisplay(s.ActiveDate, c.cfg.Locale, c.cfg.MonthStyle), name)
}
