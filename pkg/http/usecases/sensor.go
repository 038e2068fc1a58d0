package usecases

import (
	"github.com/Highlander2003/EcoFlow/pkg/traffic"
)

const sourceHTTP = "http"

type SensorService struct {
	registry SensorRegistry
}

func NewSensorService(registry SensorRegistry) *SensorService {
	return &SensorService{registry: registry}
}

func (ss *SensorService) Ingest(r traffic.SensorReading) (traffic.IngestResult, error) {
	return ss.registry.Ingest(sourceHTTP, r)
}

func (ss *SensorService) Sensors() []traffic.SensorStatus {
	return ss.registry.Sensors()
}
