package app

import (
	"encoding/json"
	"time"

	"github.com/womat/debug"

	"rotorenc/pkg/axis"
	"rotorenc/pkg/encoder"
)

// telemetry is the message published to the mqtt broker.
type telemetry struct {
	TimeStamp time.Time        `json:"timestamp"`
	Encoder   encoder.Snapshot `json:"encoder"`
	Axis      axis.Snapshot    `json:"axis"`
}

// runTelemetry publishes the estimator state every mqtt interval until app.quit is closed.
func (app *App) runTelemetry() {
	defer close(app.done)

	if app.config.MQTT.Interval <= 0 {
		<-app.quit
		return
	}

	ticker := time.NewTicker(app.config.MQTT.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-app.quit:
			return
		case t := <-ticker.C:
			app.sendMQTT("state", app.telemetry(t))
		}
	}
}

func (app *App) telemetry(t time.Time) telemetry {
	return telemetry{
		TimeStamp: t,
		Encoder:   app.encoder.Snapshot(),
		Axis:      app.axis.Snapshot(),
	}
}

// sendMQTT send message struct to the mqtt broker.
func (app *App) sendMQTT(topic string, message interface{}) {
	debug.TraceLog.Printf("prepare mqtt message %v %v", topic, message)

	b, err := json.Marshal(message)
	if err != nil {
		debug.ErrorLog.Printf("sendMQTT marshal: %v", err)
		return
	}

	_ = app.mqtt.Send(topic, b)
}
