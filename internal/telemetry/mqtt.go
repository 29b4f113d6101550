// Package telemetry publishes session state transitions to an MQTT broker
// so long runs can be watched from outside the process.
package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/phuslu/log"

	"github.com/mildmongrel/thicket/internal/session"
)

// Client is the part of mqtt.Client the publisher uses.
type Client interface {
	Connect() mqtt.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Event is the payload of one published transition.
type Event struct {
	Host    HostInfo         `json:"host"`
	At      time.Time        `json:"at"`
	Session session.Snapshot `json:"session"`
}

// Publisher is a session.Observer. publishing never blocks the session that
// reports the transition.
type Publisher struct {
	client Client
	topic  string
	host   HostInfo

	logger *log.Logger
}

// NewMQTTClient builds a paho client for broker (for example
// "tcp://127.0.0.1:1883").
func NewMQTTClient(broker, clientID string, logger *log.Logger) mqtt.Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info().Str("broker", broker).Msg("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("mqtt connection lost")
	})

	return mqtt.NewClient(opts)
}

func NewPublisher(client Client, topic string, host HostInfo, logger *log.Logger) *Publisher {
	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	return &Publisher{
		client: client,
		topic:  topic,
		host:   host,
		logger: logger,
	}
}

func (p *Publisher) Connect() error {
	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("could not connect to mqtt broker: %w", token.Error())
	}
	return nil
}

// Topic returns the topic transitions of the named session go to.
func (p *Publisher) Topic(name string) string {
	return p.topic + "/" + name
}

func (p *Publisher) StateChanged(snap session.Snapshot) {
	if !p.client.IsConnected() {
		return
	}

	data, err := json.Marshal(Event{Host: p.host, At: time.Now(), Session: snap})
	if err != nil {
		p.logger.Warn().Err(err).Str("session", snap.Name).Msg("could not marshal event")
		return
	}

	topic := p.Topic(snap.Name)
	token := p.client.Publish(topic, 1, false, data)
	go func() {
		token.Wait()
		if token.Error() != nil {
			p.logger.Warn().Err(token.Error()).Str("topic", topic).Msg("mqtt publish failed")
		}
	}()
}

func (p *Publisher) Close() {
	p.client.Disconnect(5000)
}
