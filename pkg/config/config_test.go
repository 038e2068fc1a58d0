package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Highlander2003/EcoFlow/pkg/util"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Cost.Weights.Distance)
	assert.Equal(t, 0.3, cfg.Cost.Weights.CO2)
	assert.Equal(t, 0.2, cfg.Cost.Weights.Time)
	assert.Equal(t, 80, cfg.Optimizer.PopulationSize)
	assert.Equal(t, 30, cfg.Optimizer.Generations)
	assert.Equal(t, 100, cfg.Optimizer.MaxWalkLength)
	assert.Equal(t, 5*time.Minute, cfg.Traffic.UpdatePeriod)
	assert.Equal(t, 0.1, cfg.Traffic.SampleFraction)
	assert.Equal(t, "ecoflow/sensors/#", cfg.MQTT.Topic)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
cost:
  weights:
    distance: 0.6
    co2: 0.2
    time: 0.2
optimizer:
  generations: 5
traffic:
  update_period: 30s
vehicles:
  - name: scooter
    emission_factor: 0.03
    max_speed_kph: 25
    speed_factor: 1
  - name: tram
    emission_factor: 0.02
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 0.6, cfg.Cost.Weights.Distance)
	assert.Equal(t, 5, cfg.Optimizer.Generations)
	assert.Equal(t, 30*time.Second, cfg.Traffic.UpdatePeriod)
	require.Len(t, cfg.Vehicles, 2)
	assert.Equal(t, "scooter", cfg.Vehicles[0].Name)
	assert.Equal(t, "tram", cfg.Vehicles[1].Name)
	assert.Equal(t, 1.0, cfg.Vehicles[1].SpeedFactor)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(v *viper.Viper)
	}{
		{name: "weights do not sum to one", mutate: func(v *viper.Viper) { v.Set("cost.weights.distance", 0.9) }},
		{name: "population too small", mutate: func(v *viper.Viper) { v.Set("optimizer.population_size", 1) }},
		{name: "no generations", mutate: func(v *viper.Viper) { v.Set("optimizer.generations", 0) }},
		{name: "mutation prob out of range", mutate: func(v *viper.Viper) { v.Set("optimizer.mutation_prob", 1.5) }},
		{name: "walk too short", mutate: func(v *viper.Viper) { v.Set("optimizer.max_walk_length", 1) }},
		{name: "non positive period", mutate: func(v *viper.Viper) { v.Set("traffic.update_period", "0s") }},
		{name: "zero normalization", mutate: func(v *viper.Viper) { v.Set("cost.max.co2_kg", 0) }},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.mutate(v)
			_, err := Load(v)
			assert.ErrorIs(t, err, util.ErrInvalidConfig)
		})
	}
}
