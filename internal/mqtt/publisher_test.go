package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"moonwatch/internal/astro"
	"moonwatch/internal/calendar"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	retained bool
	payload  string
}

type fakeClient struct {
	mu       sync.Mutex
	messages map[string]message
	fail     map[string]bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{messages: map[string]message{}, fail: map[string]bool{}}
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail[topic] {
		return doneToken{err: errors.New("broker unavailable")}
	}
	var body string
	switch p := payload.(type) {
	case string:
		body = p
	case []byte:
		body = string(p)
	}
	c.messages[topic] = message{retained: retained, payload: body}
	return doneToken{}
}

func (c *fakeClient) IsConnected() bool { return true }
func (c *fakeClient) Disconnect(uint)   {}

func sampleObservation() astro.Observation {
	return astro.Observation{
		Date:                calendar.NewDate(2024, 3, 20),
		Location:            "San Francisco",
		Hemisphere:          astro.Northern,
		PhaseName:           "Waxing Gibbous",
		IlluminationPercent: 84,
		CyclePercent:        42,
		Moonrise:            calendar.TimeOfDay{Hour: 13, Minute: 2},
		Moonset:             calendar.TimeOfDay{Hour: 4, Minute: 10},
		Sunrise:             calendar.TimeOfDay{Hour: 7, Minute: 11},
		Sunset:              calendar.TimeOfDay{Hour: 19, Minute: 22},
	}
}

func TestPublish(t *testing.T) {
	fc := newFakeClient()
	p := newPublisher(fc, "")

	require.NoError(t, p.Publish(sampleObservation()))

	assert.Equal(t, "Waxing Gibbous", fc.messages["moonwatch/san+francisco/phase"].payload)
	assert.Equal(t, "84", fc.messages["moonwatch/san+francisco/illumination"].payload)
	assert.Equal(t, "13:02", fc.messages["moonwatch/san+francisco/moonrise"].payload)
	assert.Equal(t, "northern", fc.messages["moonwatch/san+francisco/hemisphere"].payload)

	status := fc.messages["moonwatch/san+francisco/status"]
	assert.True(t, status.retained)
	var decoded astro.Observation
	require.NoError(t, json.Unmarshal([]byte(status.payload), &decoded))
	assert.Equal(t, 42, decoded.CyclePercent)
}

func TestPublishStatusFailure(t *testing.T) {
	fc := newFakeClient()
	fc.fail["moon/san+francisco/status"] = true
	p := newPublisher(fc, "moon")

	err := p.Publish(sampleObservation())
	assert.Error(t, err)
	assert.Contains(t, fc.messages, "moon/san+francisco/phase")
}

func TestDisabledPublisher(t *testing.T) {
	p, err := NewPublisher(PublisherConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, p.Publish(sampleObservation()))
	assert.NoError(t, p.PublishHomeAssistantDiscovery("Tokyo"))
	assert.False(t, p.IsConnected())
	p.Close()
}

func TestHomeAssistantDiscovery(t *testing.T) {
	fc := newFakeClient()
	p := newPublisher(fc, "moonwatch")

	require.NoError(t, p.PublishHomeAssistantDiscovery("Tokyo"))

	msg, ok := fc.messages["homeassistant/sensor/moonwatch_tokyo/illumination/config"]
	require.True(t, ok)
	assert.True(t, msg.retained)

	var config map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(msg.payload), &config))
	assert.Equal(t, "moonwatch/tokyo/illumination", config["state_topic"])
	assert.Equal(t, "%", config["unit_of_measurement"])
	assert.NotContains(t, fc.messages["homeassistant/sensor/moonwatch_tokyo/phase/config"].payload, "unit_of_measurement")
}
