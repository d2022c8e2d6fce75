package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Display     DisplayConfig     `mapstructure:"display"`
	Source      SourceConfig      `mapstructure:"source"`
	Geolocation GeolocationConfig `mapstructure:"geolocation"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Collector   CollectorConfig   `mapstructure:"collector"`
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
	Database    DatabaseConfig    `mapstructure:"database"`
}

type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	DefaultLocation string `mapstructure:"default_location"`
	Locale          string `mapstructure:"locale"`
	MonthStyle      string `mapstructure:"month_style"`
}

// DisplayConfig sizes the donut charts and the moon sprite.
type DisplayConfig struct {
	ChartSize        float64 `mapstructure:"chart_size"`
	ChartMargin      float64 `mapstructure:"chart_margin"`
	SweepWidth       float64 `mapstructure:"sweep_width"`
	LabelGap         float64 `mapstructure:"label_gap"`
	AxisOffset       float64 `mapstructure:"axis_offset"`
	SpriteFrames     int     `mapstructure:"sprite_frames"`
	SpriteFrameWidth int     `mapstructure:"sprite_frame_width"`
}

type SourceConfig struct {
	USNOURL             string        `mapstructure:"usno_url"`
	GeocodingURL        string        `mapstructure:"geocoding_url"`
	ReverseGeocodingURL string        `mapstructure:"reverse_geocoding_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	UserAgent           string        `mapstructure:"user_agent"`
}

type GeolocationConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	Backend  string        `mapstructure:"backend"`
	TTL      time.Duration `mapstructure:"ttl"`
	RedisURL string        `mapstructure:"redis_url"`
}

type CollectorConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Schedule  string   `mapstructure:"schedule"`
	Locations []string `mapstructure:"locations"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
	// Retention is how long recorded observations are kept. Zero keeps
	// them forever.
	Retention time.Duration `mapstructure:"retention"`
}

func Load(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/moonwatch")
	}

	viper.SetEnvPrefix("MOONWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration with every default applied and no file
// or environment read.
func Default() (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.default_location", "Greenwich, England")
	v.SetDefault("server.locale", "en")
	v.SetDefault("server.month_style", "long")
	v.SetDefault("display.chart_size", 200)
	v.SetDefault("display.chart_margin", 30)
	v.SetDefault("display.sweep_width", 20)
	v.SetDefault("display.label_gap", 6)
	v.SetDefault("display.axis_offset", -90)
	v.SetDefault("display.sprite_frames", 26)
	v.SetDefault("display.sprite_frame_width", 200)
	v.SetDefault("source.usno_url", "https://aa.usno.navy.mil/api/rstt/oneday")
	v.SetDefault("source.geocoding_url", "https://geocoding-api.open-meteo.com/v1/search")
	v.SetDefault("source.reverse_geocoding_url", "https://nominatim.openstreetmap.org/reverse")
	v.SetDefault("source.timeout", "10s")
	v.SetDefault("source.user_agent", "moonwatch/1.0")
	v.SetDefault("geolocation.timeout", "5s")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", "6h")
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	v.SetDefault("collector.enabled", false)
	v.SetDefault("collector.schedule", "5 0 * * *")
	v.SetDefault("collector.locations", []string{})
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic_prefix", "moonwatch")
	v.SetDefault("mqtt.client_id", "moonwatch")
	v.SetDefault("database.path", "./moonwatch.db")
	v.SetDefault("database.retention", "8760h")
}
