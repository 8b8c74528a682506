package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/peragwin/compscope/audio/sensors/scope"
)

// CompressionMessage is published on every telemetry tick. Ratio and DB are
// null while the compression trace has no value.
type CompressionMessage struct {
	Ratio    *float64 `json:"ratio"`
	DB       *float64 `json:"db"`
	Strategy string   `json:"strategy"`
	Zoom     float64  `json:"zoom"`
	Time     int64    `json:"time"`
}

func newCompressionMessage(s *scope.Scope, now time.Time) *CompressionMessage {
	m := &CompressionMessage{
		Strategy: s.Strategy().String(),
		Zoom:     s.Zoom(),
		Time:     now.UnixMilli(),
	}
	if c := s.Compression(); !math.IsNaN(c) && !math.IsInf(c, 0) {
		m.Ratio = &c
		if c > 0 {
			db := 20 * math.Log10(c)
			m.DB = &db
		}
	}
	return m
}

func (m *CompressionMessage) publish(client mqtt.Client, topic string) error {
	bs, err := json.Marshal(m)
	if err != nil {
		return err
	}
	token := client.Publish(topic, 0, false, bs)
	token.WaitTimeout(10 * time.Millisecond)
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	return nil
}

// telemetry publishes the compression ratio of a scope to an MQTT broker.
type telemetry struct {
	client mqtt.Client
	topic  string
	scope  *scope.Scope
}

func newTelemetry(cfg TelemetryConfig, s *scope.Scope) (*telemetry, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, err
	}
	if _, err := url.Parse(cfg.Broker); err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(fmt.Sprintf("compscope-%s", hostname)).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)
	client := mqtt.NewClient(opts)
	conn := client.Connect()
	conn.Wait()
	if err := conn.Error(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Broker, err)
	}
	glog.Infof("telemetry: connected to mqtt broker %s", cfg.Broker)
	return &telemetry{client: client, topic: cfg.Topic, scope: s}, nil
}

func (t *telemetry) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer t.client.Disconnect(250)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := newCompressionMessage(t.scope, now).publish(t.client, t.topic); err != nil {
				glog.Warningf("telemetry: %v", err)
			}
		}
	}
}
