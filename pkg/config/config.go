package config

import (
	"time"

	"github.com/Highlander2003/EcoFlow/pkg/costfunction"
	"github.com/Highlander2003/EcoFlow/pkg/engine/optimizer"
	"github.com/Highlander2003/EcoFlow/pkg/util"
	"github.com/spf13/viper"
)

type CostConfig struct {
	Weights costfunction.Weights       `mapstructure:"weights"`
	Max     costfunction.Normalization `mapstructure:"max"`
}

type TrafficConfig struct {
	UpdatePeriod         time.Duration `mapstructure:"update_period"`
	Simulated            bool          `mapstructure:"simulated"`
	SampleFraction       float64       `mapstructure:"sample_fraction"`
	MaxCongestion        float64       `mapstructure:"max_congestion"`
	InitialMaxCongestion float64       `mapstructure:"initial_max_congestion"`
}

type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	QoS      byte   `mapstructure:"qos"`
}

type HTTPConfig struct {
	Port      int           `mapstructure:"port"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	RateBurst int           `mapstructure:"rate_burst"`
	CacheSize int           `mapstructure:"cache_size"`
}

type GraphConfig struct {
	Path string `mapstructure:"path"`
}

type SpatialConfig struct {
	SnapRadiusKm float64 `mapstructure:"snap_radius_km"`
}

type Config struct {
	Cost      CostConfig                    `mapstructure:"cost"`
	Optimizer optimizer.Params              `mapstructure:"optimizer"`
	Traffic   TrafficConfig                 `mapstructure:"traffic"`
	MQTT      MQTTConfig                    `mapstructure:"mqtt"`
	HTTP      HTTPConfig                    `mapstructure:"http"`
	Graph     GraphConfig                   `mapstructure:"graph"`
	Spatial   SpatialConfig                 `mapstructure:"spatial"`
	Vehicles  []costfunction.VehicleProfile `mapstructure:"vehicles"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	w := costfunction.DefaultWeights()
	v.SetDefault("cost.weights.distance", w.Distance)
	v.SetDefault("cost.weights.co2", w.CO2)
	v.SetDefault("cost.weights.time", w.Time)

	m := costfunction.DefaultNormalization()
	v.SetDefault("cost.max.distance_km", m.DistanceKm)
	v.SetDefault("cost.max.time_min", m.TimeMin)
	v.SetDefault("cost.max.co2_kg", m.CO2Kg)

	o := optimizer.DefaultParams()
	v.SetDefault("optimizer.population_size", o.PopulationSize)
	v.SetDefault("optimizer.generations", o.Generations)
	v.SetDefault("optimizer.crossover_prob", o.CrossoverProb)
	v.SetDefault("optimizer.mutation_prob", o.MutationProb)
	v.SetDefault("optimizer.max_walk_length", o.MaxWalkLength)
	v.SetDefault("optimizer.walk_retries", o.WalkRetries)
	v.SetDefault("optimizer.seed", o.Seed)
	v.SetDefault("optimizer.workers", o.Workers)

	v.SetDefault("traffic.update_period", 5*time.Minute)
	v.SetDefault("traffic.simulated", true)
	v.SetDefault("traffic.sample_fraction", 0.1)
	v.SetDefault("traffic.max_congestion", 0.9)
	v.SetDefault("traffic.initial_max_congestion", 0.3)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "ecoflow/sensors/#")
	v.SetDefault("mqtt.client_id", "ecoflow-engine")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("http.port", 5000)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.rate_limit", 50.0)
	v.SetDefault("http.rate_burst", 100)
	v.SetDefault("http.cache_size", 4096)

	v.SetDefault("graph.path", "./data/city.graph")
	v.SetDefault("spatial.snap_radius_km", 1.0)
}

// Load builds the typed config from v (viper.GetViper() when nil) and validates it.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, util.WrapErrorf(err, util.ErrInvalidConfig, "decode config")
	}
	for i := range cfg.Vehicles {
		cfg.Vehicles[i].ApplyDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Cost.Weights.Validate(); err != nil {
		return err
	}
	if err := c.Cost.Max.Validate(); err != nil {
		return err
	}

	if err := c.Optimizer.Validate(); err != nil {
		return err
	}

	t := c.Traffic
	switch {
	case t.UpdatePeriod <= 0:
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "traffic.update_period must be positive")
	case t.SampleFraction <= 0 || t.SampleFraction > 1:
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "traffic.sample_fraction must be in (0,1], got %f", t.SampleFraction)
	case t.MaxCongestion < 0 || t.MaxCongestion > 1 || t.InitialMaxCongestion < 0 || t.InitialMaxCongestion > 1:
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "traffic congestion bounds must be in [0,1]")
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "mqtt.broker is required when mqtt is enabled")
	}
	if c.MQTT.QoS > 2 {
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "mqtt.qos must be 0, 1 or 2")
	}
	if c.HTTP.Timeout <= 0 || c.HTTP.RateLimit <= 0 || c.HTTP.RateBurst < 1 {
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "http timeout, rate_limit and rate_burst must be positive")
	}
	if c.Spatial.SnapRadiusKm <= 0 {
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "spatial.snap_radius_km must be positive")
	}
	for i := range c.Vehicles {
		if err := c.Vehicles[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
