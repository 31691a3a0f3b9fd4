package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del engine.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Arbitrage ArbitrageConfig `yaml:"arbitrage"`
	Backtest  BacktestConfig  `yaml:"backtest"`
	Agent     AgentConfig     `yaml:"agent"`
	API       APIConfig       `yaml:"api"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       LogConfig       `yaml:"log"`
}

// EngineConfig controla los tickers de cada subsistema.
type EngineConfig struct {
	PollIntervalSeconds      int `yaml:"poll_interval_seconds"`
	ArbitrageIntervalSeconds int `yaml:"arbitrage_interval_seconds"`
	AgentIntervalSeconds     int `yaml:"agent_interval_seconds"`
	BacktestIntervalMinutes  int `yaml:"backtest_interval_minutes"`
	TickTimeoutSeconds       int `yaml:"tick_timeout_seconds"` // deadline por tick; al expirar se commitea lo parcial
	Workers                  int `yaml:"workers"`              // 0 = runtime.NumCPU()*2
	HistoryPoints            int `yaml:"history_points"`       // puntos de inefficiency_history expuestos
}

// ScoringConfig parametriza el InefficiencyScorer.
type ScoringConfig struct {
	BuyThreshold float64 `yaml:"buy_threshold"` // T_buy en puntos porcentuales
}

// ArbitrageConfig parametriza el matcher cross-platform.
type ArbitrageConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	FeePercent          float64 `yaml:"fee_percent"`   // fee round-trip en puntos porcentuales
	MinLiquidity        float64 `yaml:"min_liquidity"` // liquidez mínima operable por lado
}

// BacktestConfig parametriza las corridas periódicas de backtest.
type BacktestConfig struct {
	Days           int     `yaml:"days"`
	InitialCapital float64 `yaml:"initial_capital"`
	StakePerTrade  float64 `yaml:"stake_per_trade"`
	Seed           uint64  `yaml:"seed"` // 0 = entropía nueva en cada corrida
}

// AgentConfig parametriza el PortfolioAgent.
type AgentConfig struct {
	InitialBalance       float64 `yaml:"initial_balance"`
	StakePerTrade        float64 `yaml:"stake_per_trade"`
	HoldingPeriodMinutes int     `yaml:"holding_period_minutes"`
	MaxOpenPerTick       int     `yaml:"max_open_per_tick"` // 0 = sin límite
	MaxTradeHistory      int     `yaml:"max_trade_history"`
}

// APIConfig contiene los base URLs de las APIs upstream.
type APIConfig struct {
	PolymarketBase        string   `yaml:"polymarket_base"`
	ManifoldBase          string   `yaml:"manifold_base"`
	OracleBase            string   `yaml:"oracle_base"`
	OracleAPIKey          string   `yaml:"-"` // solo desde ORACLE_API_KEY
	Platforms             []string `yaml:"platforms"`
	MarketsPerPlatform    int      `yaml:"markets_per_platform"`
	RequestTimeoutSeconds int      `yaml:"request_timeout_seconds"`
}

// ServerConfig controla el HTTP server de la Query API.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN           string `yaml:"dsn"`            // ruta al archivo SQLite, o ":memory:"
	RetentionDays int    `yaml:"retention_days"` // snapshots más viejos se purgan
}

// RedisConfig activa el mirror de reportes. Addr vacío lo desactiva.
type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"-"`
	DB         int    `yaml:"db"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
// Un path vacío arranca solo con defaults y variables de entorno.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Validate rechaza combinaciones que el engine no puede ejecutar.
func (c *Config) Validate() error {
	var errs []error
	if c.Arbitrage.SimilarityThreshold <= 0 || c.Arbitrage.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("arbitrage.similarity_threshold must be in (0,1], got %v", c.Arbitrage.SimilarityThreshold))
	}
	if c.Arbitrage.FeePercent < 0 {
		errs = append(errs, errors.New("arbitrage.fee_percent must be >= 0"))
	}
	if c.Backtest.StakePerTrade > c.Backtest.InitialCapital {
		errs = append(errs, errors.New("backtest.stake_per_trade exceeds initial_capital"))
	}
	if c.Agent.StakePerTrade > c.Agent.InitialBalance {
		errs = append(errs, errors.New("agent.stake_per_trade exceeds initial_balance"))
	}
	for _, p := range c.API.Platforms {
		if p != "Polymarket" && p != "Manifold" {
			errs = append(errs, fmt.Errorf("api.platforms: unknown platform %q", p))
		}
	}
	return errors.Join(errs...)
}

// PollInterval devuelve el intervalo de poll como time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollIntervalSeconds) * time.Second
}

// ArbitrageInterval devuelve el intervalo entre pasadas de arbitraje.
func (c *Config) ArbitrageInterval() time.Duration {
	return time.Duration(c.Engine.ArbitrageIntervalSeconds) * time.Second
}

// AgentInterval devuelve el periodo del tick del agente.
func (c *Config) AgentInterval() time.Duration {
	return time.Duration(c.Engine.AgentIntervalSeconds) * time.Second
}

// BacktestInterval devuelve cada cuánto se recalcula el backtest.
func (c *Config) BacktestInterval() time.Duration {
	return time.Duration(c.Engine.BacktestIntervalMinutes) * time.Minute
}

// TickTimeout devuelve el deadline por tick.
func (c *Config) TickTimeout() time.Duration {
	return time.Duration(c.Engine.TickTimeoutSeconds) * time.Second
}

// HoldingPeriod devuelve cuánto vive un trade OPEN antes de forzar su resolución.
func (c *Config) HoldingPeriod() time.Duration {
	return time.Duration(c.Agent.HoldingPeriodMinutes) * time.Minute
}

// RequestTimeout devuelve el timeout HTTP de los clientes upstream.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.RequestTimeoutSeconds) * time.Second
}

// RedisTTL devuelve el TTL de los reportes espejados.
func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Redis.TTLMinutes) * time.Minute
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("BETGPT_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("BETGPT_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("BETGPT_ORACLE_BASE"); v != "" {
		cfg.API.OracleBase = v
	}
	if v := os.Getenv("BETGPT_PLATFORMS"); v != "" {
		cfg.API.Platforms = strings.Split(v, ",")
	}
	if v := os.Getenv("BETGPT_BACKTEST_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Backtest.Seed = seed
		}
	}
	if v := os.Getenv("ORACLE_API_KEY"); v != "" {
		cfg.API.OracleAPIKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Engine.PollIntervalSeconds <= 0 {
		cfg.Engine.PollIntervalSeconds = 60
	}
	if cfg.Engine.ArbitrageIntervalSeconds <= 0 {
		cfg.Engine.ArbitrageIntervalSeconds = 60
	}
	if cfg.Engine.AgentIntervalSeconds <= 0 {
		cfg.Engine.AgentIntervalSeconds = 60
	}
	if cfg.Engine.BacktestIntervalMinutes <= 0 {
		cfg.Engine.BacktestIntervalMinutes = 60
	}
	if cfg.Engine.TickTimeoutSeconds <= 0 {
		cfg.Engine.TickTimeoutSeconds = 30
	}
	if cfg.Engine.HistoryPoints <= 0 {
		cfg.Engine.HistoryPoints = 100
	}
	if cfg.Scoring.BuyThreshold <= 0 {
		cfg.Scoring.BuyThreshold = 10
	}
	if cfg.Arbitrage.SimilarityThreshold == 0 {
		cfg.Arbitrage.SimilarityThreshold = 0.85
	}
	if cfg.Backtest.Days <= 0 {
		cfg.Backtest.Days = 30
	}
	if cfg.Backtest.InitialCapital <= 0 {
		cfg.Backtest.InitialCapital = 1000
	}
	if cfg.Backtest.StakePerTrade <= 0 {
		cfg.Backtest.StakePerTrade = 50
	}
	if cfg.Agent.InitialBalance <= 0 {
		cfg.Agent.InitialBalance = 1000
	}
	if cfg.Agent.StakePerTrade <= 0 {
		cfg.Agent.StakePerTrade = 50
	}
	if cfg.Agent.HoldingPeriodMinutes <= 0 {
		cfg.Agent.HoldingPeriodMinutes = 60
	}
	if cfg.Agent.MaxTradeHistory <= 0 {
		cfg.Agent.MaxTradeHistory = 200
	}
	if cfg.API.PolymarketBase == "" {
		cfg.API.PolymarketBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.ManifoldBase == "" {
		cfg.API.ManifoldBase = "https://api.manifold.markets"
	}
	if len(cfg.API.Platforms) == 0 {
		cfg.API.Platforms = []string{"Polymarket", "Manifold"}
	}
	if cfg.API.MarketsPerPlatform <= 0 {
		cfg.API.MarketsPerPlatform = 100
	}
	if cfg.API.RequestTimeoutSeconds <= 0 {
		cfg.API.RequestTimeoutSeconds = 10
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":5001"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "betgpt.db"
	}
	if cfg.Storage.RetentionDays <= 0 {
		cfg.Storage.RetentionDays = 90
	}
	if cfg.Redis.TTLMinutes <= 0 {
		cfg.Redis.TTLMinutes = 24 * 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
