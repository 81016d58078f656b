// Package ingest normalizes inbound transport messages into events.
package ingest

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/factoriot/hub/internal/errors"
	"github.com/factoriot/hub/internal/models"
	"github.com/factoriot/hub/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// Adapter translates raw transport payloads into events and appends them
// to the event store. Duplicate deliveries produce duplicate events; the
// transport gives no exactly-once guarantee and the adapter does not
// deduplicate.
type Adapter struct {
	events repository.EventRepository
	now    func() time.Time
}

// New creates an ingest adapter.
func New(events repository.EventRepository) *Adapter {
	return &Adapter{events: events, now: time.Now}
}

// WithClock overrides the arrival clock, for tests.
func (a *Adapter) WithClock(now func() time.Time) *Adapter {
	a.now = now
	return a
}

// OnMessageReceived parses one transport message and persists it as an
// event. A malformed payload yields a validation error; the caller logs
// and drops it — there is no retry and no dead letter queue. Persistence
// failures are propagated.
func (a *Adapter) OnMessageReceived(ctx context.Context, topic string, payload []byte) error {
	var msg models.TelemetryMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return errors.NewValidationError("malformed telemetry payload", err)
	}
	if msg.DataType == "" {
		return errors.NewValidationError("telemetry payload missing dataType", nil)
	}
	if msg.Timestamp.IsZero() {
		return errors.NewValidationError("telemetry payload missing timestamp", nil)
	}
	if msg.DeviceID == 0 {
		// Topic layout is factory/device/{id}/data
		id, ok := deviceIDFromTopic(topic)
		if !ok {
			return errors.NewValidationError("telemetry payload missing deviceId", nil)
		}
		msg.DeviceID = id
	}

	event := &models.Event{
		DeviceID:        msg.DeviceID,
		Topic:           topic,
		DataType:        msg.DataType,
		Value:           msg.Value,
		Unit:            msg.Unit,
		ReceivedAt:      a.now().UTC(),
		DeviceTimestamp: msg.Timestamp.UTC(),
	}

	if _, err := a.events.Append(ctx, event); err != nil {
		return err
	}

	nuts.L.Debugf("[Ingest] Stored event: device=%d type=%s value=%f",
		event.DeviceID, event.DataType, event.Value)
	return nil
}

func deviceIDFromTopic(topic string) (int, bool) {
	parts := strings.Split(topic, "/")
	for i, part := range parts {
		if part == "device" && i+1 < len(parts) {
			id, err := strconv.Atoi(parts[i+1])
			if err == nil && id > 0 {
				return id, true
			}
			return 0, false
		}
	}
	return 0, false
}
