package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moonwatch/config"
	"moonwatch/internal/api"
	"moonwatch/internal/astro"
	"moonwatch/internal/cache"
	"moonwatch/internal/calendar"
	"moonwatch/internal/collector"
	"moonwatch/internal/geometry"
	"moonwatch/internal/moon"
	"moonwatch/internal/mqtt"
	"moonwatch/internal/navigation"
	"moonwatch/internal/storage"

	"github.com/spf13/cobra"

	_ "time/tzdata"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "moonwatch",
		Short: "Sun and moon rise/set viewer",
		Long:  "Shows sunrise, sunset, moonrise, moonset and the moon's phase for any date and place",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(testCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// dataSources wires the geocoder, the USNO client and the response cache.
func dataSources(cfg *config.Config) (astro.Source, astro.Geocoder, cache.Store, error) {
	store, err := cache.New(cache.Config{Backend: cfg.Cache.Backend, RedisURL: cfg.Cache.RedisURL})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open cache: %w", err)
	}

	geocoder := astro.NewOpenMeteoGeocoder(astro.GeocoderConfig{
		SearchURL:  cfg.Source.GeocodingURL,
		ReverseURL: cfg.Source.ReverseGeocodingURL,
		UserAgent:  cfg.Source.UserAgent,
		Language:   cfg.Server.Locale,
		Timeout:    cfg.Source.Timeout,
		Cache:      store,
	})

	usno := astro.NewUSNOClient(astro.USNOConfig{
		URL:       cfg.Source.USNOURL,
		UserAgent: cfg.Source.UserAgent,
		Timeout:   cfg.Source.Timeout,
		Geocoder:  geocoder,
	})

	if store == nil {
		return usno, geocoder, nil, nil
	}
	return astro.NewCachedSource(usno, store, cfg.Cache.TTL), geocoder, store, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long:  "Start the HTTP server, the daily collector and the MQTT publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			source, geocoder, store, err := dataSources(cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
				log.Printf("Caching observations in %s for %s", cfg.Cache.Backend, cfg.Cache.TTL)
			}

			db, err := storage.NewDatabase(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()
			log.Printf("Database opened at %s", cfg.Database.Path)

			publisher, err := mqtt.NewPublisher(mqtt.PublisherConfig{
				Broker:      cfg.MQTT.Broker,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				Enabled:     cfg.MQTT.Enabled,
			})
			if err != nil {
				log.Printf("Warning: MQTT connection failed: %v", err)
				publisher = nil
			} else if cfg.MQTT.Enabled {
				log.Printf("MQTT connected to %s", cfg.MQTT.Broker)
				for _, location := range cfg.Collector.Locations {
					if err := publisher.PublishHomeAssistantDiscovery(location); err != nil {
						log.Printf("Warning: discovery for %s failed: %v", location, err)
					}
				}
			}

			collCfg := collector.CollectorConfig{
				Source:    source,
				Recorder:  db,
				Pruner:    db,
				Retention: cfg.Database.Retention,
				Locations: cfg.Collector.Locations,
				Schedule:  cfg.Collector.Schedule,
				Enabled:   cfg.Collector.Enabled,
			}
			if publisher != nil {
				collCfg.Publisher = publisher
				defer publisher.Close()
			}
			coll := collector.NewCollector(collCfg)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			go func() {
				if err := coll.Start(ctx); err != nil {
					log.Printf("Collector error: %v", err)
				}
			}()

			server, err := api.NewServer(api.ServerConfig{
				Port:       cfg.Server.Port,
				Source:     source,
				Geocoder:   geocoder,
				Database:   db,
				Collector:  coll,
				Config:     cfg,
				ConfigPath: configFile,
			})
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			go func() {
				if err := server.Start(); err != nil {
					log.Printf("HTTP server error: %v", err)
				}
			}()

			log.Println("Moonwatch started. Press Ctrl+C to stop.")

			<-sigChan
			log.Println("Shutting down...")
			cancel()

			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return server.Stop(shutdownCtx)
		},
	}
}

func showCmd() *cobra.Command {
	var (
		date     string
		location string
		days     int
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the observation for a date and location",
		Long:  "Fetch one or more days of sun and moon data and print them as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			source, geocoder, store, err := dataSources(cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			start := calendar.TodaysDate()
			if date != "" {
				if start, err = calendar.ParseISO(date); err != nil {
					return err
				}
			}
			if location == "" {
				location = cfg.Server.DefaultLocation
			}

			env, err := navigation.NewMemoryEnvironment("http://localhost" + calendar.BuildPath(start, location))
			if err != nil {
				return err
			}
			sprite := moon.Sprite{Frames: cfg.Display.SpriteFrames, FrameWidth: cfg.Display.SpriteFrameWidth}
			ctrl, err := navigation.New(navigation.Config{
				Source:          source,
				Geocoder:        geocoder,
				Environment:     env,
				DefaultLocation: cfg.Server.DefaultLocation,
				Locale:          cfg.Server.Locale,
				MonthStyle:      calendar.ParseMonthStyle(cfg.Server.MonthStyle),
				Sprite:          sprite,
			})
			if err != nil {
				return err
			}

			chart := geometry.NewChart(geometry.ChartConfig{
				Size:       cfg.Display.ChartSize,
				Margin:     cfg.Display.ChartMargin,
				SweepWidth: cfg.Display.SweepWidth,
				LabelGap:   cfg.Display.LabelGap,
				AxisOffset: cfg.Display.AxisOffset,
			})

			ctx := cmd.Context()
			if err := ctrl.Init(ctx); err != nil {
				return err
			}
			for i := 0; ; i++ {
				if err := printSnapshot(ctrl.Snapshot(), chart); err != nil {
					return err
				}
				if i+1 >= days {
					break
				}
				if err := ctrl.Navigate(ctx, navigation.Next); err != nil {
					return err
				}
			}

			if verbose {
				for _, n := range env.Notifications() {
					log.Println(n)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "", "date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&location, "location", "l", "", "location name (default from config)")
	cmd.Flags().IntVarP(&days, "days", "n", 1, "number of consecutive days to print")
	return cmd
}

func printSnapshot(snap navigation.Snapshot, chart geometry.Chart) error {
	if snap.Observation == nil {
		return fmt.Errorf("no observation for %s", snap.State.Location)
	}
	obs := snap.Observation

	output, err := json.MarshalIndent(struct {
		Title       string            `json:"title"`
		Path        string            `json:"path"`
		Observation astro.Observation `json:"observation"`
		SpriteFrame int               `json:"sprite_frame"`
		Sun         geometry.ArcSweep `json:"sun"`
		Moon        geometry.ArcSweep `json:"moon"`
	}{
		Title:       snap.Title,
		Path:        snap.Path,
		Observation: *obs,
		SpriteFrame: snap.SpriteFrame,
		Sun:         chart.Arc(obs.Sunrise, obs.Sunset).Sweep,
		Moon:        chart.Arc(obs.Moonrise, obs.Moonset).Sweep,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test the geocoding and astronomy APIs",
		Long:  "Resolve the default location and fetch today's data for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			source, geocoder, store, err := dataSources(cfg)
			if err != nil {
				fmt.Printf("Cache FAILED: %v\n", err)
				return err
			}
			if store != nil {
				defer store.Close()
			}

			location := cfg.Server.DefaultLocation
			fmt.Printf("Resolving %q...\n", location)

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.Source.Timeout)
			defer cancel()

			place, err := geocoder.Resolve(ctx, location)
			if err != nil {
				fmt.Printf("Geocoding FAILED: %v\n", err)
				return err
			}
			fmt.Printf("  %s (%.4f, %.4f) %s\n", place.Label(), place.Latitude, place.Longitude, place.Timezone)

			obs, err := source.Fetch(ctx, calendar.TodaysDate(), location)
			if err != nil {
				fmt.Printf("Astronomy API FAILED: %v\n", err)
				return err
			}

			fmt.Println("Connection SUCCESS!")
			fmt.Printf("\nToday in %s:\n", place.Label())
			fmt.Printf("  Phase:        %s (%.0f%% lit)\n", obs.PhaseName, obs.IlluminationPercent)
			fmt.Printf("  Moonrise:     %s\n", obs.Moonrise)
			fmt.Printf("  Moonset:      %s\n", obs.Moonset)
			fmt.Printf("  Sunrise:      %s\n", obs.Sunrise)
			fmt.Printf("  Sunset:       %s\n", obs.Sunset)
			return nil
		},
	}
}
