package traffic

import (
	"context"
	"errors"

	da "github.com/Highlander2003/EcoFlow/pkg/datastructure"
)

// MultiSource merges several sources. later sources win on conflicting edges. a failing source
// does not drop its own partial updates or those of the others; its error is returned alongside them.
type MultiSource struct {
	sources []UpdateSource
}

func NewMultiSource(sources ...UpdateSource) *MultiSource {
	return &MultiSource{sources: sources}
}

// NewSensorOverrideSource merges background sources (e.g. simulated traffic) with sensor readings.
// measured congestion always overrides background values on the same edge.
func NewSensorOverrideSource(sensors *SensorSource, background ...UpdateSource) *MultiSource {
	sources := make([]UpdateSource, 0, len(background)+1)
	sources = append(sources, background...)
	return NewMultiSource(append(sources, sensors)...)
}

func (m *MultiSource) Poll(ctx context.Context) (map[da.EdgeKey]float64, error) {
	merged := make(map[da.EdgeKey]float64)
	var errs []error
	for _, src := range m.sources {
		updates, err := src.Poll(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		for k, v := range updates {
			merged[k] = v
		}
	}
	return merged, errors.Join(errs...)
}
