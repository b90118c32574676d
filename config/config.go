package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Risk    RiskConfig    `yaml:"risk"`
	Gate    GateConfig    `yaml:"gate"`
	Beliefs BeliefsConfig `yaml:"beliefs"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// EngineConfig controls the scheduling loops.
type EngineConfig struct {
	PollIntervalSeconds      int `yaml:"poll_interval_seconds"`
	ReconcileIntervalSeconds int `yaml:"reconcile_interval_seconds"`
	GovernorIntervalSeconds  int `yaml:"governor_interval_seconds"`
}

// RiskConfig controls capital and sizing.
type RiskConfig struct {
	StartingCapital         float64 `yaml:"starting_capital"`
	KellyFraction           float64 `yaml:"kelly_fraction"`
	MaxRiskPerTrade         float64 `yaml:"max_risk_per_trade"` // fraction of total capital
	MaxPositionSize         float64 `yaml:"max_position_size"`  // currency units
	MinTradeSize            float64 `yaml:"min_trade_size"`
	DailyLossLimit          float64 `yaml:"daily_loss_limit"`
	MaxDrawdownPct          float64 `yaml:"max_drawdown_pct"`
	MaxCalibrationDeviation float64 `yaml:"max_calibration_deviation"`
	MaxConsecutiveLosses    int     `yaml:"max_consecutive_losses"`
	MinCalibrationSample    int     `yaml:"min_calibration_sample"`
}

// GateConfig controls trade eligibility thresholds.
type GateConfig struct {
	MinConfidence        float64 `yaml:"min_confidence"`
	MaxBeliefWidth       float64 `yaml:"max_belief_width"`
	MinLiquidity         float64 `yaml:"min_liquidity"`
	MaxOpenPositions     int     `yaml:"max_open_positions"`
	MaxCategoryPositions int     `yaml:"max_category_positions"`
}

// BeliefsConfig controls belief update dynamics and memory bounds.
type BeliefsConfig struct {
	MaxStepPoints float64 `yaml:"max_step_points"`
	SignalHistory int     `yaml:"signal_history"`
}

// APIConfig holds the external service base URLs.
type APIConfig struct {
	MarketsBase string `yaml:"markets_base"`
	SignalsBase string `yaml:"signals_base"`
}

// StorageConfig controls where state is persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config file plus a .env file when present. Env
// values override the YAML for the keys they cover.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// PollInterval returns the market polling interval as a time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollIntervalSeconds) * time.Second
}

// ReconcileInterval returns the resolution sweep interval.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Engine.ReconcileIntervalSeconds) * time.Second
}

// GovernorInterval returns the memory maintenance interval.
func (c *Config) GovernorInterval() time.Duration {
	return time.Duration(c.Engine.GovernorIntervalSeconds) * time.Second
}

// applyEnvOverrides overrides values from environment variables when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("STARTING_CAPITAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Risk.StartingCapital = f
		}
	}
}

// setDefaults fills every required value with a sensible default.
func setDefaults(cfg *Config) {
	if cfg.Engine.PollIntervalSeconds <= 0 {
		cfg.Engine.PollIntervalSeconds = 60
	}
	if cfg.Engine.ReconcileIntervalSeconds <= 0 {
		cfg.Engine.ReconcileIntervalSeconds = 300
	}
	if cfg.Engine.GovernorIntervalSeconds <= 0 {
		cfg.Engine.GovernorIntervalSeconds = 300
	}
	if cfg.Risk.StartingCapital <= 0 {
		cfg.Risk.StartingCapital = 1000
	}
	if cfg.Risk.KellyFraction <= 0 {
		cfg.Risk.KellyFraction = 0.25
	}
	if cfg.Risk.MaxRiskPerTrade <= 0 {
		cfg.Risk.MaxRiskPerTrade = 0.02
	}
	if cfg.Risk.MaxPositionSize <= 0 {
		cfg.Risk.MaxPositionSize = 50
	}
	if cfg.Risk.MinTradeSize <= 0 {
		cfg.Risk.MinTradeSize = 1.0
	}
	if cfg.Risk.DailyLossLimit <= 0 {
		cfg.Risk.DailyLossLimit = 50
	}
	if cfg.Risk.MaxDrawdownPct <= 0 {
		cfg.Risk.MaxDrawdownPct = 10
	}
	if cfg.Risk.MaxCalibrationDeviation <= 0 {
		cfg.Risk.MaxCalibrationDeviation = 15
	}
	if cfg.Risk.MaxConsecutiveLosses <= 0 {
		cfg.Risk.MaxConsecutiveLosses = 5
	}
	if cfg.Risk.MinCalibrationSample <= 0 {
		cfg.Risk.MinCalibrationSample = 20
	}
	if cfg.Gate.MinConfidence <= 0 {
		cfg.Gate.MinConfidence = 65
	}
	if cfg.Gate.MaxBeliefWidth <= 0 {
		cfg.Gate.MaxBeliefWidth = 25
	}
	if cfg.Gate.MinLiquidity <= 0 {
		cfg.Gate.MinLiquidity = 500
	}
	if cfg.Gate.MaxOpenPositions <= 0 {
		cfg.Gate.MaxOpenPositions = 10
	}
	if cfg.Gate.MaxCategoryPositions <= 0 {
		cfg.Gate.MaxCategoryPositions = 3
	}
	if cfg.Beliefs.MaxStepPoints <= 0 {
		cfg.Beliefs.MaxStepPoints = 5
	}
	if cfg.Beliefs.SignalHistory <= 0 {
		cfg.Beliefs.SignalHistory = 50
	}
	if cfg.API.MarketsBase == "" {
		cfg.API.MarketsBase = "http://localhost:8080"
	}
	if cfg.API.SignalsBase == "" {
		cfg.API.SignalsBase = "http://localhost:8081"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "convict.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
