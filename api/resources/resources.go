// FilePath: api/resources/resources.go
package resources

import (
	"github.com/factoriot/hub/internal/aggregator"
	"github.com/factoriot/hub/internal/models"
	"github.com/factoriot/hub/internal/service"
)

// DevicePublisher publishes outbound messages on the device topics.
type DevicePublisher interface {
	PublishDeviceData(deviceID int, msg models.TelemetryMessage) error
	PublishDeviceStatus(deviceID int, status string) error
}

// Resources holds all HTTP resource handlers
type Resources struct {
	Devices     *DeviceHandlers
	Aggregation *AggregationHandlers
}

// NewResources creates a new Resources instance
func NewResources(svc *service.Service, agg *aggregator.Aggregator, publisher DevicePublisher) *Resources {
	return &Resources{
		Devices:     &DeviceHandlers{service: svc, publisher: publisher},
		Aggregation: &AggregationHandlers{aggregator: agg},
	}
}
