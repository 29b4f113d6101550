package telemetry_test

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/matryer/is"

	"github.com/mildmongrel/thicket/internal/session"
	"github.com/mildmongrel/thicket/internal/telemetry"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	published  []published
}

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = c.connectErr == nil
	return doneToken{err: c.connectErr}
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return doneToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func TestPublishesTransitions(t *testing.T) {
	is := is.New(t)

	client := &fakeClient{}
	host := telemetry.HostInfo{Hostname: "bench-1", Platform: "linux", CPUCores: 8}
	pub := telemetry.NewPublisher(client, "thicket/sim", host, nil)

	// nothing goes out before the broker connection is up
	pub.StateChanged(session.Snapshot{Name: "sim_0000", State: session.StateConnecting})
	is.Equal(len(client.published), 0)

	is.NoErr(pub.Connect())
	pub.StateChanged(session.Snapshot{Name: "sim_0000", State: session.StateInRoom, RoomID: 5})

	is.Equal(len(client.published), 1)
	msg := client.published[0]
	is.Equal(msg.topic, "thicket/sim/sim_0000")
	is.Equal(msg.qos, byte(1))

	var payload struct {
		Host    telemetry.HostInfo `json:"host"`
		Session struct {
			Name   string `json:"name"`
			State  string `json:"state"`
			RoomID uint32 `json:"room_id"`
		} `json:"session"`
	}
	is.NoErr(json.Unmarshal(msg.payload, &payload))
	is.Equal(payload.Host.Hostname, "bench-1")
	is.Equal(payload.Session.Name, "sim_0000")
	is.Equal(payload.Session.State, "in_room")
	is.Equal(payload.Session.RoomID, uint32(5))

	pub.Close()
	is.True(!client.IsConnected())
}

func TestConnectError(t *testing.T) {
	is := is.New(t)

	refused := errors.New("refused")
	pub := telemetry.NewPublisher(&fakeClient{connectErr: refused}, "thicket/sim", telemetry.HostInfo{}, nil)
	is.True(errors.Is(pub.Connect(), refused))
}
