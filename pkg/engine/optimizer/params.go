package optimizer

import (
	"github.com/Highlander2003/EcoFlow/pkg/util"
)

type Params struct {
	PopulationSize int     `mapstructure:"population_size"`
	Generations    int     `mapstructure:"generations"`
	CrossoverProb  float64 `mapstructure:"crossover_prob"`
	MutationProb   float64 `mapstructure:"mutation_prob"`
	MaxWalkLength  int     `mapstructure:"max_walk_length"` // nodes
	WalkRetries    int     `mapstructure:"walk_retries"`
	Seed           int64   `mapstructure:"seed"` // 0 = time based
	Workers        int     `mapstructure:"workers"`
}

func DefaultParams() Params {
	return Params{
		PopulationSize: 80,
		Generations:    30,
		CrossoverProb:  0.7,
		MutationProb:   0.3,
		MaxWalkLength:  100,
		WalkRetries:    3,
		Seed:           0,
		Workers:        4,
	}
}

func (p Params) Validate() error {
	switch {
	case p.PopulationSize < 2:
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "optimizer.population_size must be >= 2, got %d", p.PopulationSize)
	case p.Generations < 1:
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "optimizer.generations must be >= 1, got %d", p.Generations)
	case p.CrossoverProb < 0 || p.CrossoverProb > 1:
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "optimizer.crossover_prob must be in [0,1], got %f", p.CrossoverProb)
	case p.MutationProb < 0 || p.MutationProb > 1:
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "optimizer.mutation_prob must be in [0,1], got %f", p.MutationProb)
	case p.CrossoverProb+p.MutationProb > 1+1e-9:
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "optimizer crossover_prob + mutation_prob must be <= 1")
	case p.MaxWalkLength < 2:
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "optimizer.max_walk_length must be >= 2, got %d", p.MaxWalkLength)
	case p.WalkRetries < 1:
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "optimizer.walk_retries must be >= 1, got %d", p.WalkRetries)
	case p.Workers < 1:
		return util.WrapErrorf(nil, util.ErrInvalidConfig, "optimizer.workers must be >= 1, got %d", p.Workers)
	}
	return nil
}
