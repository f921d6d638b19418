package reinforcement

import (
	"errors"
	"fmt"
	"math/rand"

	"taxi/grid_world"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every configuration rejected before solving begins.
var ErrInvalidConfig = errors.New("invalid solver configuration")

// ErrUnknownArrivalMode is returned when the arrival mode is neither sampled nor uniform.
var ErrUnknownArrivalMode = errors.New("unknown arrival mode")

// ErrUnknownKind is returned when a config file's kind is not valueIteration.
var ErrUnknownKind = errors.New("unknown config kind")

const (
	// ConfigKind is the only supported config file kind.
	ConfigKind = "valueIteration"

	ArrivalSampled = "sampled"
	ArrivalUniform = "uniform"
)

// Rewards are the immediate rewards of the taxi model.
type Rewards struct {
	// Step is received for every movement action.
	Step float64 `yaml:"step"`
	// Invalid is received for a pickup or dropoff that cannot happen.
	Invalid float64 `yaml:"invalid"`
	Pickup  float64 `yaml:"pickup"`
	Dropoff float64 `yaml:"dropoff"`
}

func DefaultRewards() Rewards {
	return Rewards{
		Step:    -1,
		Invalid: -5,
		Pickup:  0,
		Dropoff: 10,
	}
}

// ArrivalConfig describes how a passenger appears next to an empty taxi after it moves.
type ArrivalConfig struct {
	Mode        string  `yaml:"mode" validate:"oneof=sampled uniform"`
	Probability float64 `yaml:"probability" validate:"gte=0,lte=1"`
}

// SolverConfig holds everything a solver run needs. It replaces ambient globals so that
// several configurations can be solved side by side.
type SolverConfig struct {
	GridSize int `validate:"gte=1"`
	// Discount (gamma) must lie strictly inside (0,1).
	Discount float64 `validate:"gt=0,lt=1"`
	// Threshold is compared against the sup-norm of the per-sweep value delta.
	Threshold     float64 `validate:"gt=0"`
	MaxIterations int     `validate:"gte=1"`
	// Workers is the number of sweep goroutines; 0 means one per CPU.
	Workers int `validate:"gte=0"`
	// ProgressEvery reports progress every n sweeps; 0 reports only on termination.
	ProgressEvery int `validate:"gte=0"`
	// Seed feeds the arrival destination draw when no random source is injected.
	Seed    int64
	Arrival ArrivalConfig
	Rewards Rewards
}

func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		GridSize:      5,
		Discount:      0.9,
		Threshold:     1e-3,
		MaxIterations: 1000,
		Workers:       0,
		ProgressEvery: 10,
		Seed:          1,
		Arrival: ArrivalConfig{
			Mode:        ArrivalSampled,
			Probability: 0.2,
		},
		Rewards: DefaultRewards(),
	}
}

var validate = validator.New()

// Validate rejects configurations the solver cannot run.
func (cfg SolverConfig) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// validateSolver checks only the fields Solve consumes. The arrival and reward settings
// belong to the model, which callers may build themselves.
func (cfg SolverConfig) validateSolver() error {
	if err := validate.StructExcept(cfg, "Arrival", "Rewards"); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Grid returns the configured grid geometry.
func (cfg SolverConfig) Grid() grid_world.Grid {
	return grid_world.NewGrid(cfg.GridSize)
}

// NewModel builds the taxi model for this configuration. The arrival destinations are drawn
// from @rng, or from a source seeded with cfg.Seed when @rng is nil.
func (cfg SolverConfig) NewModel(rng *rand.Rand) (*TaxiModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}

	grid := cfg.Grid()
	var arrivals ArrivalModel
	switch cfg.Arrival.Mode {
	case ArrivalSampled:
		arrivals = NewSampledArrivals(grid, rng)
	case ArrivalUniform:
		arrivals = NewUniformArrivals(grid)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownArrivalMode, cfg.Arrival.Mode)
	}

	return NewTaxiModel(grid, cfg.Rewards, cfg.Arrival.Probability, arrivals), nil
}

type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// TrainingConfig is the on-disk form of a solver configuration. Unset fields fall back
// to DefaultSolverConfig when converted with SolverConfig.
// Viper lowercases every key it reads, so the yaml tags are lowercase; files may use any case.
type TrainingConfig struct {
	// HyperParams is a key-val list of algorithm parameters: gamma and threshold.
	HyperParams   []HyperParameter `yaml:"hyperparams"`
	GridSize      int              `yaml:"gridsize"`
	MaxIterations int              `yaml:"maxiterations"`
	Workers       int              `yaml:"workers"`
	ProgressEvery *int             `yaml:"progressevery"`
	Seed          *int64           `yaml:"seed"`
	Arrival       struct {
		Mode        string   `yaml:"mode"`
		Probability *float64 `yaml:"probability"`
	} `yaml:"arrival"`
	Rewards RewardOverrides `yaml:"rewards"`
}

// RewardOverrides are the rewards a config file sets; each unset reward keeps its default.
type RewardOverrides struct {
	Step    *float64 `yaml:"step"`
	Invalid *float64 `yaml:"invalid"`
	Pickup  *float64 `yaml:"pickup"`
	Dropoff *float64 `yaml:"dropoff"`
}

// Apply returns @rewards with the set overrides replacing their fields.
func (ro RewardOverrides) Apply(rewards Rewards) Rewards {
	overlay := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	overlay(&rewards.Step, ro.Step)
	overlay(&rewards.Invalid, ro.Invalid)
	overlay(&rewards.Pickup, ro.Pickup)
	overlay(&rewards.Dropoff, ro.Dropoff)
	return rewards
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// SolverConfig overlays the file's settings onto the defaults. The result is not validated.
func (cfg *TrainingConfig) SolverConfig() SolverConfig {
	sc := DefaultSolverConfig()
	sc.Discount = cfg.GetHyperParamOrDefault("gamma", sc.Discount)
	sc.Threshold = cfg.GetHyperParamOrDefault("threshold", sc.Threshold)
	if cfg.GridSize != 0 {
		sc.GridSize = cfg.GridSize
	}
	if cfg.MaxIterations != 0 {
		sc.MaxIterations = cfg.MaxIterations
	}
	if cfg.Workers != 0 {
		sc.Workers = cfg.Workers
	}
	if cfg.ProgressEvery != nil {
		sc.ProgressEvery = *cfg.ProgressEvery
	}
	if cfg.Seed != nil {
		sc.Seed = *cfg.Seed
	}
	if cfg.Arrival.Mode != "" {
		sc.Arrival.Mode = cfg.Arrival.Mode
	}
	if cfg.Arrival.Probability != nil {
		sc.Arrival.Probability = *cfg.Arrival.Probability
	}
	sc.Rewards = cfg.Rewards.Apply(sc.Rewards)
	return sc
}

// FromYaml reads a kind/def config file. Viper locates and parses the file; the def body is
// round-tripped through yaml so that the inner struct only needs yaml tags.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, err
	}
	if outerConfig.Kind != ConfigKind {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, outerConfig.Kind)
	}

	var def []byte
	if def, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, err
	}

	innerConfig := &TrainingConfig{}
	if err = yaml.Unmarshal(def, innerConfig); err != nil {
		return nil, err
	}

	return innerConfig, nil
}
