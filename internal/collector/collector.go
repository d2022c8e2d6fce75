package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"moonwatch/internal/astro"
	"moonwatch/internal/calendar"

	"github.com/robfig/cron/v3"
)

const DefaultSchedule = "5 0 * * *"

// Recorder keeps a history of observations.
type Recorder interface {
	SaveObservation(obs astro.Observation) error
}

// Pruner drops recorded observations past their retention.
type Pruner interface {
	CleanOldObservations(olderThan time.Duration) error
}

// Publisher forwards observations, typically to MQTT.
type Publisher interface {
	Publish(obs astro.Observation) error
}

// Collector fetches today's observation for a fixed set of locations on a
// cron schedule, records it and publishes it. The same schedule prunes
// history older than the retention, even with collection disabled.
type Collector struct {
	source    astro.Source
	recorder  Recorder
	publisher Publisher
	pruner    Pruner
	retention time.Duration
	locations []string
	schedule  string
	enabled   bool
	now       func() time.Time

	mu           sync.RWMutex
	latest       map[string]astro.Observation
	isCollecting bool
}

type CollectorConfig struct {
	Source    astro.Source
	Recorder  Recorder
	Publisher Publisher
	Pruner    Pruner
	Retention time.Duration
	Locations []string
	Schedule  string
	Enabled   bool
	Now       func() time.Time
}

func NewCollector(cfg CollectorConfig) *Collector {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Collector{
		source:    cfg.Source,
		recorder:  cfg.Recorder,
		publisher: cfg.Publisher,
		pruner:    cfg.Pruner,
		retention: cfg.Retention,
		locations: cfg.Locations,
		schedule:  cfg.Schedule,
		enabled:   cfg.Enabled,
		now:       cfg.Now,
		latest:    map[string]astro.Observation{},
	}
}

// Start collects once, then on every tick of the schedule until ctx is
// done.
func (c *Collector) Start(ctx context.Context) error {
	pruning := c.pruner != nil && c.retention > 0
	if !c.enabled && !pruning {
		log.Println("Collector is disabled")
		return nil
	}
	if c.enabled && (c.source == nil || len(c.locations) == 0) {
		return errors.New("collector needs a source and at least one location")
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(c.schedule, func() { c.run(ctx) }); err != nil {
		return fmt.Errorf("invalid collector schedule %q: %w", c.schedule, err)
	}

	c.mu.Lock()
	c.isCollecting = c.enabled
	c.mu.Unlock()

	if c.enabled {
		log.Printf("Starting collector for %v on schedule %q", c.locations, c.schedule)
	}
	if pruning {
		log.Printf("Keeping %s of history, pruned on schedule %q", c.retention, c.schedule)
	}

	c.run(ctx)
	scheduler.Start()

	<-ctx.Done()
	<-scheduler.Stop().Done()

	log.Println("Collector stopped")
	c.mu.Lock()
	c.isCollecting = false
	c.mu.Unlock()
	return nil
}

func (c *Collector) run(ctx context.Context) {
	if c.enabled {
		c.collect(ctx)
	}
	c.prune()
}

func (c *Collector) prune() {
	if c.pruner == nil || c.retention <= 0 {
		return
	}
	if err := c.pruner.CleanOldObservations(c.retention); err != nil {
		log.Printf("Error pruning history: %v", err)
	}
}

func (c *Collector) collect(ctx context.Context) {
	for _, location := range c.locations {
		obs, err := c.CollectOnce(ctx, location)
		if err != nil {
			log.Printf("Error collecting %s: %v", location, err)
			continue
		}

		if c.recorder != nil {
			if err := c.recorder.SaveObservation(*obs); err != nil {
				log.Printf("Error saving observation: %v", err)
			}
		}

		if c.publisher != nil {
			if err := c.publisher.Publish(*obs); err != nil {
				log.Printf("Error publishing to MQTT: %v", err)
			}
		}

		log.Printf("Collected %s %s: %s, %.0f%% lit, moon %s-%s, sun %s-%s",
			location, obs.Date, obs.PhaseName, obs.IlluminationPercent,
			obs.Moonrise, obs.Moonset, obs.Sunrise, obs.Sunset)
	}
}

// CollectOnce fetches today's observation for location and keeps it as
// the latest.
func (c *Collector) CollectOnce(ctx context.Context, location string) (*astro.Observation, error) {
	if c.source == nil {
		return nil, errors.New("collector has no source")
	}

	obs, err := c.source.Fetch(ctx, calendar.Today(c.now()), location)
	if err != nil {
		return nil, err
	}
	if obs == nil {
		return nil, astro.ErrNoData
	}

	o := *obs
	if err := o.ApplyPhase(); err != nil {
		log.Printf("Unrecognized phase for %s: %v", location, err)
	}

	c.mu.Lock()
	c.latest[location] = o
	c.mu.Unlock()

	return &o, nil
}

func (c *Collector) GetLatest(location string) (astro.Observation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obs, ok := c.latest[location]
	return obs, ok
}

func (c *Collector) IsCollecting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isCollecting
}
