package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"moonwatch/internal/astro"
	"moonwatch/internal/calendar"
	"moonwatch/internal/navigation"
	"moonwatch/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
)

type NavigateRequest struct {
	Direction string `json:"direction" binding:"required"`
}

type LocationRequest struct {
	Location string `json:"location" binding:"required"`
}

// GeolocateRequest carries the outcome of the browser's position lookup.
type GeolocateRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Denied    bool    `json:"denied"`
	TimedOut  bool    `json:"timed_out"`
	TimeoutMS int     `json:"timeout_ms"`
}

type DisplayConfigResponse struct {
	DefaultLocation string `json:"default_location"`
	Locale          string `json:"locale"`
	MonthStyle      string `json:"month_style"`
}

type DisplayConfigRequest struct {
	DefaultLocation string `json:"default_location" binding:"required"`
	Locale          string `json:"locale" binding:"required"`
	MonthStyle      string `json:"month_style" binding:"required,oneof=short long"`
}

// statusFor maps navigation and data source errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, astro.ErrPositionTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, navigation.ErrGeolocation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, navigation.ErrStale):
		return http.StatusConflict
	case errors.Is(err, navigation.ErrCrossOrigin):
		return http.StatusBadRequest
	case errors.Is(err, astro.ErrLocationNotFound), errors.Is(err, astro.ErrNoData),
		errors.Is(err, navigation.ErrFetchFailed):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) apiSession(c *gin.Context) (*session, bool) {
	sess, err := s.sessions.get(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	s.ensureInit(c.Request.Context(), sess)
	return sess, true
}

// respond writes the session state, with the error when the operation
// failed. The state is included either way so clients can redraw.
func (s *Server) respond(c *gin.Context, sess *session, err error) {
	view := s.pageView(sess.ctrl.Snapshot(), sess.env.TakeNotices())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "state": view})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) stateHandler(c *gin.Context) {
	sess, ok := s.apiSession(c)
	if !ok {
		return
	}
	s.respond(c, sess, nil)
}

func (s *Server) navigateHandler(c *gin.Context) {
	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dir, err := navigation.ParseDirection(req.Direction)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, ok := s.apiSession(c)
	if !ok {
		return
	}
	s.respond(c, sess, sess.ctrl.Navigate(c.Request.Context(), dir))
}

func (s *Server) locationHandler(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, ok := s.apiSession(c)
	if !ok {
		return
	}
	s.respond(c, sess, sess.ctrl.ChangeLocation(c.Request.Context(), req.Location))
}

func (s *Server) resetHandler(c *gin.Context) {
	sess, ok := s.apiSession(c)
	if !ok {
		return
	}
	s.respond(c, sess, sess.ctrl.Reset(c.Request.Context()))
}

func (s *Server) geolocateHandler(c *gin.Context) {
	var req GeolocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	locator := astro.StaticGeolocator{Position: astro.Position{Latitude: req.Latitude, Longitude: req.Longitude}}
	switch {
	case req.Denied:
		locator.Err = astro.ErrPositionDenied
	case req.TimedOut:
		locator.Err = astro.ErrPositionTimeout
	}

	sess, ok := s.apiSession(c)
	if !ok {
		return
	}
	timeout := time.Duration(req.TimeoutMS) * time.Millisecond
	s.respond(c, sess, sess.ctrl.Geolocate(c.Request.Context(), locator, timeout))
}

// observationHandler answers a one-off lookup without touching any session.
func (s *Server) observationHandler(c *gin.Context) {
	date := calendar.Today(s.now())
	if raw := c.Query("date"); raw != "" {
		d, err := calendar.ParseISO(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'date', expected YYYY-MM-DD"})
			return
		}
		date = d
	}

	location := strings.TrimSpace(c.Query("location"))
	if location == "" {
		location = s.defaultLocation()
	}

	obs, err := s.source.Fetch(c.Request.Context(), date, location)
	if err == nil && obs == nil {
		err = astro.ErrNoData
	}
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	o := *obs
	if err := o.ApplyPhase(); err != nil {
		log.Printf("Unrecognized phase for %s: %v", location, err)
	}
	c.JSON(http.StatusOK, newObservationView(o, s.chart, s.sprite))
}

func (s *Server) historyHandler(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "History is not enabled"})
		return
	}

	if c.Query("latest") == "true" {
		record, err := s.db.GetLatestObservation(c.Query("location"))
		if errors.Is(err, storage.ErrNoHistory) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, record)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "30"))
	if err != nil || limit <= 0 || limit > 365 {
		limit = 30
	}

	from, to := c.Query("from"), c.Query("to")
	if from != "" || to != "" {
		if _, err := calendar.ParseISO(from); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'from' date format"})
			return
		}
		if _, err := calendar.ParseISO(to); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'to' date format"})
			return
		}
		records, err := s.db.GetObservationsByDateRange(c.Query("location"), from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, records)
		return
	}

	records, err := s.db.GetObservationHistory(c.Query("location"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) phaseCountsHandler(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "History is not enabled"})
		return
	}
	counts, err := s.db.GetPhaseCounts(c.Query("location"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (s *Server) getDisplayConfigHandler(c *gin.Context) {
	s.configMutex.RLock()
	defer s.configMutex.RUnlock()

	c.JSON(http.StatusOK, DisplayConfigResponse{
		DefaultLocation: s.config.Server.DefaultLocation,
		Locale:          s.config.Server.Locale,
		MonthStyle:      s.config.Server.MonthStyle,
	})
}

// updateDisplayConfigHandler applies to pages rendered from now on and to
// sessions started afterwards.
func (s *Server) updateDisplayConfigHandler(c *gin.Context) {
	var req DisplayConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "success": false})
		return
	}

	s.configMutex.Lock()
	s.config.Server.DefaultLocation = strings.TrimSpace(req.DefaultLocation)
	s.config.Server.Locale = req.Locale
	s.config.Server.MonthStyle = req.MonthStyle
	s.configMutex.Unlock()

	if err := s.saveConfigToFile(); err != nil {
		log.Printf("Warning: Failed to save config to file: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Display configuration updated successfully",
	})
}

func (s *Server) saveConfigToFile() error {
	s.configMutex.RLock()
	defer s.configMutex.RUnlock()

	configPath := s.configPath
	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		log.Printf("Starting new config file %s: %v", configPath, err)
	}

	v.Set("server.default_location", s.config.Server.DefaultLocation)
	v.Set("server.locale", s.config.Server.Locale)
	v.Set("server.month_style", s.config.Server.MonthStyle)

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
