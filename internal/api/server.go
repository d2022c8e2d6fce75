package api

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"moonwatch/config"
	"moonwatch/internal/astro"
	"moonwatch/internal/calendar"
	"moonwatch/internal/collector"
	"moonwatch/internal/geometry"
	"moonwatch/internal/moon"
	"moonwatch/internal/navigation"
	"moonwatch/internal/storage"

	"github.com/gin-gonic/gin"
)

//go:embed web/templates/*.html web/static/*
var webFS embed.FS

type Server struct {
	router    *gin.Engine
	server    *http.Server
	port      int
	source    astro.Source
	geocoder  astro.Geocoder
	db        *storage.Database
	collector *collector.Collector
	sessions  *sessionRegistry
	chart     geometry.Chart
	sprite    moon.Sprite
	now       func() time.Time

	config      *config.Config
	configPath  string
	configMutex sync.RWMutex
}

type ServerConfig struct {
	Port       int
	Source     astro.Source
	Geocoder   astro.Geocoder
	Database   *storage.Database
	Collector  *collector.Collector
	Config     *config.Config
	ConfigPath string
	Now        func() time.Time
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Source == nil {
		return nil, errors.New("api: source is required")
	}
	if cfg.Config == nil {
		def, err := config.Default()
		if err != nil {
			return nil, err
		}
		cfg.Config = def
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	display := cfg.Config.Display
	s := &Server{
		router:    router,
		port:      cfg.Port,
		source:    cfg.Source,
		geocoder:  cfg.Geocoder,
		db:        cfg.Database,
		collector: cfg.Collector,
		chart: geometry.NewChart(geometry.ChartConfig{
			Size:       display.ChartSize,
			Margin:     display.ChartMargin,
			SweepWidth: display.SweepWidth,
			LabelGap:   display.LabelGap,
			AxisOffset: display.AxisOffset,
		}),
		sprite:     moon.Sprite{Frames: display.SpriteFrames, FrameWidth: display.SpriteFrameWidth},
		now:        cfg.Now,
		config:     cfg.Config,
		configPath: cfg.ConfigPath,
	}
	if s.sprite.Frames <= 0 || s.sprite.FrameWidth <= 0 {
		s.sprite = moon.DefaultSprite()
	}
	if s.port == 0 {
		s.port = cfg.Config.Server.Port
	}
	s.sessions = &sessionRegistry{
		sessions: map[string]*session{},
		create:   s.newController,
		db:       cfg.Database,
		now:      cfg.Now,
	}

	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) setupRoutes() error {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"spriteStyle": spriteStyle,
		"safeCSS":     func(s string) template.CSS { return template.CSS(s) },
		"ring":        ringData,
	}).ParseFS(webFS, "web/templates/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	s.router.SetHTMLTemplate(tmpl)

	static, err := fs.Sub(webFS, "web/static")
	if err != nil {
		return err
	}
	s.router.StaticFS("/static", http.FS(static))

	// Pages. Dated paths have no fixed shape, so they arrive through NoRoute.
	s.router.GET("/", s.pageHandler)
	s.router.HEAD("/", s.pageHandler)
	s.router.NoRoute(s.pageHandler)
	s.router.POST("/location", s.locationFormHandler)
	s.router.POST("/reset", s.resetFormHandler)

	s.router.GET("/health", s.healthHandler)

	api := s.router.Group("/api/v1")
	{
		api.GET("/state", s.stateHandler)
		api.POST("/navigate", s.navigateHandler)
		api.POST("/location", s.locationHandler)
		api.POST("/reset", s.resetHandler)
		api.POST("/geolocate", s.geolocateHandler)
		api.GET("/observation", s.observationHandler)
		api.GET("/history", s.historyHandler)
		api.GET("/history/phases", s.phaseCountsHandler)

		api.GET("/config/display", s.getDisplayConfigHandler)
		api.PUT("/config/display", s.updateDisplayConfigHandler)
	}
	return nil
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	log.Printf("HTTP server starting on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) newController(id string, env *sessionEnvironment) (*navigation.Controller, error) {
	s.configMutex.RLock()
	server := s.config.Server
	timeout := s.config.Geolocation.Timeout
	s.configMutex.RUnlock()

	return navigation.New(navigation.Config{
		Source:             s.source,
		Geocoder:           s.geocoder,
		Environment:        env,
		DefaultLocation:    server.DefaultLocation,
		Locale:             server.Locale,
		MonthStyle:         calendar.ParseMonthStyle(server.MonthStyle),
		Sprite:             s.sprite,
		GeolocationTimeout: timeout,
		Now:                s.now,
		OnObservation:      s.recordObservation,
	})
}

func (s *Server) recordObservation(obs astro.Observation) {
	if s.db == nil {
		return
	}
	if err := s.db.SaveObservation(obs); err != nil {
		log.Printf("Error saving observation: %v", err)
	}
}

func (s *Server) locale() string {
	s.configMutex.RLock()
	defer s.configMutex.RUnlock()
	return s.config.Server.Locale
}

func (s *Server) monthStyle() calendar.MonthStyle {
	s.configMutex.RLock()
	defer s.configMutex.RUnlock()
	return calendar.ParseMonthStyle(s.config.Server.MonthStyle)
}

func (s *Server) defaultLocation() string {
	s.configMutex.RLock()
	defer s.configMutex.RUnlock()
	return s.config.Server.DefaultLocation
}

// ensureInit loads the session's first view when it has none yet.
func (s *Server) ensureInit(ctx context.Context, sess *session) {
	if sess.ctrl.State().Status != navigation.Idle {
		return
	}
	if err := sess.ctrl.Init(ctx); err != nil {
		log.Printf("Session %s: initial load failed: %v", sess.id, err)
	}
}

func (s *Server) pageHandler(c *gin.Context) {
	path := c.Request.URL.Path
	if (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) ||
		strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/static/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	sess, err := s.sessions.get(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sess.env.Visit(requestURL(c))
	if err := sess.ctrl.Init(c.Request.Context()); err != nil && !errors.Is(err, navigation.ErrStale) {
		log.Printf("Page %s: %v", path, err)
	}

	if sess.env.TakeReplaced() {
		if target := sess.env.CurrentURL().EscapedPath(); target != c.Request.URL.EscapedPath() {
			c.Redirect(http.StatusSeeOther, target)
			return
		}
	}

	c.HTML(http.StatusOK, "index.html", s.pageView(sess.ctrl.Snapshot(), sess.env.TakeNotices()))
}

func (s *Server) locationFormHandler(c *gin.Context) {
	sess, err := s.sessions.get(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.ensureInit(c.Request.Context(), sess)

	if err := sess.ctrl.ChangeLocation(c.Request.Context(), c.PostForm("location")); err != nil {
		log.Printf("Location change failed: %v", err)
	}
	c.Redirect(http.StatusSeeOther, sess.env.CurrentURL().EscapedPath())
}

func (s *Server) resetFormHandler(c *gin.Context) {
	sess, err := s.sessions.get(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.ensureInit(c.Request.Context(), sess)

	if err := sess.ctrl.Reset(c.Request.Context()); err != nil {
		log.Printf("Reset failed: %v", err)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) healthHandler(c *gin.Context) {
	collecting := false
	latest := gin.H{}
	if s.collector != nil {
		collecting = s.collector.IsCollecting()

		s.configMutex.RLock()
		locations := s.config.Collector.Locations
		s.configMutex.RUnlock()

		for _, location := range locations {
			if obs, ok := s.collector.GetLatest(location); ok {
				latest[location] = gin.H{
					"date":                 obs.Date.String(),
					"phase":                obs.PhaseName,
					"illumination_percent": obs.IlluminationPercent,
					"fetched_at":           obs.FetchedAt,
				}
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"sessions":   s.sessions.len(),
		"database":   s.db != nil,
		"collecting": collecting,
		"latest":     latest,
		"timestamp":  s.now(),
	})
}
