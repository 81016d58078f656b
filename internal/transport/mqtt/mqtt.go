// Package mqtt adapts the publish/subscribe transport to the ingest
// adapter and exposes the device publish operations.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/factoriot/hub/internal/config"
	"github.com/factoriot/hub/internal/errors"
	"github.com/factoriot/hub/internal/ingest"
	"github.com/factoriot/hub/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// Client wraps the paho MQTT client. Inbound messages on the configured
// topic filter are forwarded to the ingest adapter; delivery is
// at-least-once at best and the pipeline applies no backpressure to the
// broker.
type Client struct {
	cfg     config.MQTTConfig
	client  paho.Client
	adapter *ingest.Adapter
}

// NewClient creates an MQTT client wired to the ingest adapter.
func NewClient(cfg config.MQTTConfig, adapter *ingest.Adapter) *Client {
	c := &Client{cfg: cfg, adapter: adapter}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetDefaultPublishHandler(c.handleMessage)
	opts.SetOnConnectHandler(func(client paho.Client) {
		nuts.L.Infof("[MQTT] Connected to %s", cfg.BrokerURL)
		token := client.Subscribe(cfg.TopicFilter, cfg.QoS, nil)
		if token.Wait() && token.Error() != nil {
			nuts.L.Errorf("[MQTT] Subscribe to %s failed: %v", cfg.TopicFilter, token.Error())
		}
	})
	opts.SetConnectionLostHandler(func(client paho.Client, err error) {
		nuts.L.Warnf("[MQTT] Connection lost: %v", err)
	})

	c.client = paho.NewClient(opts)
	return c
}

// Connect establishes the broker connection and subscribes the topic filter.
func (c *Client) Connect() error {
	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		return errors.NewUnavailableError("failed to connect to MQTT broker", token.Error())
	}
	return nil
}

// Disconnect closes the broker connection.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
	nuts.L.Infof("[MQTT] Disconnected")
}

func (c *Client) handleMessage(_ paho.Client, msg paho.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.SaveTimeout)
	defer cancel()

	if err := c.adapter.OnMessageReceived(ctx, msg.Topic(), msg.Payload()); err != nil {
		if errors.IsValidation(err) {
			// Malformed payloads are dropped, not retried
			nuts.L.Warnf("[MQTT] Dropping message on %s: %v", msg.Topic(), err)
			return
		}
		nuts.L.Errorf("[MQTT] Failed to persist message on %s: %v", msg.Topic(), err)
	}
}

// PublishDeviceData publishes a telemetry message on the device data topic.
func (c *Client) PublishDeviceData(deviceID int, msg models.TelemetryMessage) error {
	topic := fmt.Sprintf("factory/device/%d/data", deviceID)
	return c.publishJSON(topic, msg)
}

// PublishDeviceStatus publishes a device status message.
func (c *Client) PublishDeviceStatus(deviceID int, status string) error {
	topic := fmt.Sprintf("factory/device/%d/status", deviceID)
	payload := map[string]interface{}{
		"deviceId":  deviceID,
		"status":    status,
		"timestamp": time.Now().UTC(),
	}
	return c.publishJSON(topic, payload)
}

func (c *Client) publishJSON(topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.NewInternalError("failed to encode publish payload", err)
	}

	token := c.client.Publish(topic, c.cfg.QoS, false, data)
	if token.Wait() && token.Error() != nil {
		return errors.NewUnavailableError("failed to publish to "+topic, token.Error())
	}
	nuts.L.Infof("[MQTT] Published to %s", topic)
	return nil
}
