package mqtt

import (
	"sync"
	"testing"
	"time"

	mqttlib "github.com/eclipse/paho.mqtt.golang"
)

type doneToken struct {
	mqttlib.Token
	done chan struct{}
}

func newDoneToken() *doneToken {
	t := &doneToken{done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *doneToken) Done() <-chan struct{} { return t.done }
func (t *doneToken) Error() error          { return nil }

// fakeClient records published messages.
type fakeClient struct {
	mqttlib.Client

	mu        sync.Mutex
	connected bool
	connects  int
	published []Message
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Connect() mqttlib.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	c.connects++
	return newDoneToken()
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqttlib.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, Message{Topic: topic, Qos: qos, Retained: retained, Payload: payload.([]byte)})
	return newDoneToken()
}

func (c *fakeClient) messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.published...)
}

func TestSendWithoutBroker(t *testing.T) {
	m := New()
	if err := m.Connect(Config{Topic: "rotorenc"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if m.Send("encoder", []byte("{}")) {
		t.Error("message queued without a broker")
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestService(t *testing.T) {
	c := &fakeClient{}
	m := New()
	m.handler = c
	m.config = Config{Topic: "rotorenc/axis0", Qos: 1, Retained: true}

	done := make(chan struct{})
	go func() {
		m.Service()
		close(done)
	}()

	if !m.Send("encoder", []byte(`{"shadow_count":1}`)) {
		t.Fatal("message not queued")
	}
	m.C <- Message{Payload: []byte("no topic")}
	m.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Service did not return after Close")
	}

	got := c.messages()
	if len(got) != 1 {
		t.Fatalf("published %d messages, want 1", len(got))
	}
	if got[0].Topic != "rotorenc/axis0/encoder" || got[0].Qos != 1 || !got[0].Retained {
		t.Errorf("published %+v", got[0])
	}
	if c.connects != 1 {
		t.Errorf("%d connects, want a reconnect before publishing", c.connects)
	}
}

func TestSendQueueFull(t *testing.T) {
	m := New()
	m.handler = &fakeClient{}
	m.config = Config{Topic: "t"}

	for i := 0; i < queueSize; i++ {
		if !m.Send("x", nil) {
			t.Fatalf("message %d dropped", i)
		}
	}
	if m.Send("x", nil) {
		t.Error("message queued beyond the queue size")
	}
}
