package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"moonwatch/internal/astro"
	"moonwatch/internal/calendar"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

type Publisher struct {
	client      client
	topicPrefix string
	enabled     bool
}

type PublisherConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Enabled     bool
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return &Publisher{enabled: false}, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			log.Printf("MQTT connection lost: %v", err)
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			log.Println("MQTT connected")
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return newPublisher(c, cfg.TopicPrefix), nil
}

func newPublisher(c client, topicPrefix string) *Publisher {
	if topicPrefix == "" {
		topicPrefix = "moonwatch"
	}
	return &Publisher{client: c, topicPrefix: topicPrefix, enabled: true}
}

// Topic returns the state topic of one value for a location.
func (p *Publisher) Topic(location, name string) string {
	return fmt.Sprintf("%s/%s/%s", p.topicPrefix, calendar.Urlify(location), name)
}

// Publish sends every value of obs to its own topic, then the whole
// observation as retained JSON on the status topic.
func (p *Publisher) Publish(obs astro.Observation) error {
	if !p.enabled {
		return nil
	}

	topics := map[string]interface{}{
		"date":         obs.Date.String(),
		"phase":        obs.PhaseName,
		"illumination": obs.IlluminationPercent,
		"cycle":        obs.CyclePercent,
		"hemisphere":   obs.Hemisphere,
		"moonrise":     obs.Moonrise.String(),
		"moonset":      obs.Moonset.String(),
		"sunrise":      obs.Sunrise.String(),
		"sunset":       obs.Sunset.String(),
	}

	for name, value := range topics {
		topic := p.Topic(obs.Location, name)
		payload := fmt.Sprintf("%v", value)
		token := p.client.Publish(topic, 0, false, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("Failed to publish to %s: %v", topic, token.Error())
		}
	}

	statusJSON, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("failed to marshal observation: %w", err)
	}

	token := p.client.Publish(p.Topic(obs.Location, "status"), 0, true, statusJSON)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish status: %w", token.Error())
	}

	return nil
}

// PublishHomeAssistantDiscovery announces the moon sensors of a location.
func (p *Publisher) PublishHomeAssistantDiscovery(location string) error {
	if !p.enabled {
		return nil
	}

	sensors := []struct {
		Name string
		ID   string
		Unit string
		Icon string
	}{
		{"Moon Phase", "phase", "", "mdi:moon-waxing-crescent"},
		{"Moon Illumination", "illumination", "%", "mdi:brightness-percent"},
		{"Moon Cycle", "cycle", "%", "mdi:sync"},
		{"Moonrise", "moonrise", "", "mdi:weather-night"},
		{"Moonset", "moonset", "", "mdi:weather-night"},
		{"Sunrise", "sunrise", "", "mdi:weather-sunset-up"},
		{"Sunset", "sunset", "", "mdi:weather-sunset-down"},
	}

	token := calendar.Urlify(location)
	uid := "moonwatch_" + token
	for _, sensor := range sensors {
		discoveryTopic := fmt.Sprintf("homeassistant/sensor/%s/%s/config", uid, sensor.ID)

		config := map[string]interface{}{
			"name":        sensor.Name,
			"unique_id":   fmt.Sprintf("%s_%s", uid, sensor.ID),
			"state_topic": p.Topic(location, sensor.ID),
			"icon":        sensor.Icon,
			"device": map[string]interface{}{
				"identifiers":  []string{uid},
				"name":         "Moonwatch " + location,
				"manufacturer": "moonwatch",
			},
		}
		if sensor.Unit != "" {
			config["unit_of_measurement"] = sensor.Unit
		}

		payload, err := json.Marshal(config)
		if err != nil {
			return fmt.Errorf("failed to marshal discovery for %s: %w", sensor.ID, err)
		}
		t := p.client.Publish(discoveryTopic, 0, true, payload)
		t.Wait()
		if t.Error() != nil {
			log.Printf("Failed to publish discovery %s: %v", discoveryTopic, t.Error())
		}
	}

	return nil
}

func (p *Publisher) IsConnected() bool {
	if !p.enabled {
		return false
	}
	return p.client.IsConnected()
}

func (p *Publisher) Close() {
	if p.enabled && p.client != nil {
		p.client.Disconnect(1000)
	}
}
