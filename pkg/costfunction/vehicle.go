package costfunction

import (
	"math"
	"sort"

	"github.com/Highlander2003/EcoFlow/pkg/util"
)

const (
	VehicleBus         = "bus"
	VehicleElectricBus = "electric_bus"
	VehicleBicycle     = "bicycle"
	VehicleCar         = "car"
)

type VehicleProfile struct {
	Name           string  `mapstructure:"name" json:"name"`
	EmissionFactor float64 `mapstructure:"emission_factor" json:"emission_factor"` // kg co2 / km
	MaxSpeedKph    float64 `mapstructure:"max_speed_kph" json:"max_speed_kph"`     // 0 = uncapped
	SpeedFactor    float64 `mapstructure:"speed_factor" json:"speed_factor"` // 0 = 1.0
}

// FreeFlowSpeed speed the vehicle reaches on an uncongested edge with the given speed.
func (v *VehicleProfile) FreeFlowSpeed(edgeSpeed float64) float64 {
	speed := edgeSpeed
	if v.MaxSpeedKph > 0 {
		speed = math.Min(speed, v.MaxSpeedKph)
	}
	return speed * v.SpeedFactor
}

// ApplyDefaults fills an unset speed factor with 1.0.
func (v *VehicleProfile) ApplyDefaults() {
	if v.SpeedFactor == 0 {
		v.SpeedFactor = 1.0
	}
}

func (v *VehicleProfile) Validate() error {
	if v.Name == "" {
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "vehicle profile without name")
	}
	if !(v.EmissionFactor >= 0) || math.IsInf(v.EmissionFactor, 0) {
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "vehicle %s: emission factor must be non-negative", v.Name)
	}
	if !(v.MaxSpeedKph >= 0) {
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "vehicle %s: max speed must be non-negative", v.Name)
	}
	if !(v.SpeedFactor > 0) || v.SpeedFactor > 1 {
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "vehicle %s: speed factor must be in (0,1]", v.Name)
	}
	return nil
}

func DefaultVehicleProfiles() []VehicleProfile {
	return []VehicleProfile{
		{Name: VehicleBus, EmissionFactor: 0.12, MaxSpeedKph: 80, SpeedFactor: 0.9},
		{Name: VehicleElectricBus, EmissionFactor: 0.05, MaxSpeedKph: 80, SpeedFactor: 0.9},
		{Name: VehicleBicycle, EmissionFactor: 0.0, MaxSpeedKph: 20, SpeedFactor: 1.0},
		{Name: VehicleCar, EmissionFactor: 0.18, MaxSpeedKph: 0, SpeedFactor: 1.0},
	}
}

// VehicleRegistry immutable set of vehicle profiles, loaded once.
type VehicleRegistry struct {
	profiles map[string]*VehicleProfile
}

// NewVehicleRegistry starts from the default profiles; overrides replace profiles with the same name
// or add new ones. an override without speed factor drives at full free-flow speed.
func NewVehicleRegistry(overrides ...VehicleProfile) (*VehicleRegistry, error) {
	profiles := make(map[string]*VehicleProfile)
	for _, p := range append(DefaultVehicleProfiles(), overrides...) {
		p := p
		p.ApplyDefaults()
		if err := p.Validate(); err != nil {
			return nil, err
		}
		profiles[p.Name] = &p
	}
	return &VehicleRegistry{profiles: profiles}, nil
}

func (r *VehicleRegistry) Get(name string) (*VehicleProfile, error) {
	p, ok := r.profiles[name]
	if !ok {
		return nil, util.WrapErrorf(nil, util.ErrNotFound, "unknown vehicle %q", name)
	}
	return p, nil
}

func (r *VehicleRegistry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
