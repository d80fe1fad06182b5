// Package mqtt publishes telemetry messages to an mqtt broker.
package mqtt

import (
	"path"
	"time"

	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/womat/debug"
)

const (
	// quiesce is the specified number of milliseconds to wait for existing work to be completed.
	quiesce = 250
	// queueSize is the number of messages waiting for Service before Send drops new ones.
	queueSize = 16
	// connectTimeout limits the wait for the broker.
	connectTimeout = 5 * time.Second
)

// Config defines the broker connection and the topic prefix.
type Config struct {
	Connection string `yaml:"connection"`
	ClientID   string `yaml:"clientid"`
	Topic      string `yaml:"topic"`
	Qos        byte   `yaml:"qos"`
	Retained   bool   `yaml:"retained"`
}

// Handler contains the handler of the mqtt broker.
type Handler struct {
	handler mqttlib.Client
	config  Config
	// C is the channel to service the mqtt message
	// sending a message to channel C will send the message.
	C chan Message
}

// Message contains the properties of the mqtt message.
type Message struct {
	Topic    string
	Payload  []byte
	Qos      byte
	Retained bool
}

// New generate a new mqtt broker client.
func New() *Handler {
	return &Handler{
		C: make(chan Message, queueSize),
	}
}

// Connect connects to the mqtt broker.
// If no broker is defined, no mqtt message are send.
func (m *Handler) Connect(c Config) error {
	m.config = c
	if c.Connection == "" {
		return nil
	}

	opts := mqttlib.NewClientOptions().
		AddBroker(c.Connection).
		SetClientID(c.ClientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true)
	m.handler = mqttlib.NewClient(opts)
	return m.ReConnect()
}

// ReConnect reconnects to the defined mqtt broker.
func (m *Handler) ReConnect() error {
	t := m.handler.Connect()
	<-t.Done()
	return t.Error()
}

// Disconnect will end the connection to the broker.
func (m *Handler) Disconnect() error {
	if m.handler == nil {
		return nil
	}

	m.handler.Disconnect(quiesce)
	return nil
}

// Send queues payload for the topic below the configured prefix.
// It never blocks: without a broker or with a full queue the message is dropped.
func (m *Handler) Send(topic string, payload []byte) bool {
	if m.handler == nil || m.config.Topic == "" {
		return false
	}

	msg := Message{
		Topic:    path.Join(m.config.Topic, topic),
		Payload:  payload,
		Qos:      m.config.Qos,
		Retained: m.config.Retained,
	}

	select {
	case m.C <- msg:
		return true
	default:
		debug.DebugLog.Printf("mqtt queue full, dropping message for topic %v", msg.Topic)
		return false
	}
}

// Service listen to a message on the channel C and send the message to mqtt.
// If no handler or topic is defined, the message will be ignored.
// Service returns when C is closed.
func (m *Handler) Service() {
	for d := range m.C {
		if m.handler == nil || d.Topic == "" {
			continue
		}

		if !m.handler.IsConnected() {
			debug.DebugLog.Printf("mqtt broker isn't connected, reconnect it")

			if err := m.ReConnect(); err != nil {
				debug.ErrorLog.Printf("can't reconnect to mqtt broker %v", err)
				continue
			}
		}

		debug.TraceLog.Printf("publishing %v bytes to topic %v", len(d.Payload), d.Topic)
		t := m.handler.Publish(d.Topic, d.Qos, d.Retained, d.Payload)

		// the asynchronous nature of this library makes it easy to forget to check for errors.
		go func(topic string) {
			<-t.Done()
			if err := t.Error(); err != nil {
				debug.ErrorLog.Printf("publishing topic %v: %v", topic, err)
			}
		}(d.Topic)
	}
}

// Close stops Service and disconnects from the broker.
func (m *Handler) Close() error {
	close(m.C)
	return m.Disconnect()
}
