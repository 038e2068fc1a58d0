package costfunction

import (
	"math"

	"github.com/Highlander2003/EcoFlow/pkg"
	"github.com/Highlander2003/EcoFlow/pkg/util"
)

type EdgeAttributes interface {
	GetLength() float64 // meter
	GetSpeed() float64  // free-flow km/h
}

type CostFunction interface {
	GetComponents(e EdgeAttributes, congestion float64, vehicle *VehicleProfile) Components
	GetWeight(e EdgeAttributes, congestion float64, vehicle *VehicleProfile) float64
	Composite(c Components) float64
	Heuristic(distanceKm float64) float64
}

// Weights of the composite cost. must be non-negative and sum to 1.
type Weights struct {
	Distance float64 `mapstructure:"distance"`
	CO2      float64 `mapstructure:"co2"`
	Time     float64 `mapstructure:"time"`
}

func DefaultWeights() Weights {
	return Weights{Distance: 0.5, CO2: 0.3, Time: 0.2}
}

const weightSumTolerance = 1e-6

func (w Weights) Validate() error {
	for _, v := range []float64{w.Distance, w.CO2, w.Time} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return util.WrapErrorf(nil, util.ErrInvalidConfig, "cost weights must be finite and non-negative, got %+v", w)
		}
	}
	if sum := w.Distance + w.CO2 + w.Time; math.Abs(sum-1) > weightSumTolerance {
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "cost weights must sum to 1, got %f", sum)
	}
	return nil
}

// Normalization per-edge maxima each component is divided by before weighting.
type Normalization struct {
	DistanceKm float64 `mapstructure:"distance_km"`
	TimeMin    float64 `mapstructure:"time_min"`
	CO2Kg      float64 `mapstructure:"co2_kg"`
}

func DefaultNormalization() Normalization {
	return Normalization{
		DistanceKm: pkg.MAX_EDGE_DISTANCE_KM,
		TimeMin:    pkg.MAX_EDGE_TIME_MIN,
		CO2Kg:      pkg.MAX_EDGE_CO2_KG,
	}
}

func (n Normalization) Validate() error {
	if !(n.DistanceKm > 0) || !(n.TimeMin > 0) || !(n.CO2Kg > 0) {
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "cost normalization maxima must be positive, got %+v", n)
	}
	return nil
}

// Components cost of traversing one edge, or the sum over a route.
type Components struct {
	DistanceKm float64 `json:"distance_km"`
	TimeMin    float64 `json:"time_min"`
	CO2Kg      float64 `json:"co2_kg"`
}

func (c Components) Add(o Components) Components {
	return Components{
		DistanceKm: c.DistanceKm + o.DistanceKm,
		TimeMin:    c.TimeMin + o.TimeMin,
		CO2Kg:      c.CO2Kg + o.CO2Kg,
	}
}

// Impassable true when the time component is saturated (zero effective speed).
func (c Components) Impassable() bool {
	return c.TimeMin >= pkg.INF_WEIGHT
}

// EcoCostFunction distance/time/co2 cost of an edge under congestion.
type EcoCostFunction struct {
	weights Weights
	max     Normalization
}

func NewEcoCostFunction(weights Weights, max Normalization) (*EcoCostFunction, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if err := max.Validate(); err != nil {
		return nil, err
	}
	return &EcoCostFunction{weights: weights, max: max}, nil
}

func (cf *EcoCostFunction) Weights() Weights {
	return cf.weights
}

// GetComponents.
//
//	distance_km = length / 1000
//	speed       = vehicle free-flow speed * (1 - congestion)
//	time_min    = distance_km / speed * 60, saturated to INF_WEIGHT when speed <= 0
//	co2_kg      = distance_km * emission factor * (1 + congestion)
func (cf *EcoCostFunction) GetComponents(e EdgeAttributes, congestion float64, vehicle *VehicleProfile) Components {
	congestion = util.Clamp(congestion, 0.0, 1.0)
	distanceKm := e.GetLength() / 1000.0

	effectiveSpeed := vehicle.FreeFlowSpeed(e.GetSpeed()) * (1 - congestion)
	timeMin := pkg.INF_WEIGHT
	if effectiveSpeed > 0 {
		timeMin = math.Min(distanceKm/effectiveSpeed*60.0, pkg.INF_WEIGHT)
	}

	return Components{
		DistanceKm: distanceKm,
		TimeMin:    timeMin,
		CO2Kg:      distanceKm * vehicle.EmissionFactor * (1 + congestion),
	}
}

func (cf *EcoCostFunction) Composite(c Components) float64 {
	return cf.weights.Distance*c.DistanceKm/cf.max.DistanceKm +
		cf.weights.Time*c.TimeMin/cf.max.TimeMin +
		cf.weights.CO2*c.CO2Kg/cf.max.CO2Kg
}

func (cf *EcoCostFunction) GetWeight(e EdgeAttributes, congestion float64, vehicle *VehicleProfile) float64 {
	return cf.Composite(cf.GetComponents(e, congestion, vehicle))
}

// Heuristic lower bound of the composite cost of covering distanceKm of road. time and co2 terms
// are non-negative, so the distance term alone never overestimates. callers pass a road distance
// lower bound, e.g. the great-circle distance scaled by Graph.HeuristicScale.
func (cf *EcoCostFunction) Heuristic(distanceKm float64) float64 {
	return cf.weights.Distance * distanceKm / cf.max.DistanceKm
}
