package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Log      Logger   `mapstructure:"logger"`
	DB       Database `mapstructure:"database"`
	API      API      `mapstructure:"api"`
	Worker   Worker   `mapstructure:"worker"`
	Backtest Backtest `mapstructure:"backtest"`
	Cache    Cache    `mapstructure:"cache"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type API struct {
	Port int `mapstructure:"port"`
}

// Worker bounds the background execution pool that runs backtest jobs.
type Worker struct {
	PoolSize  int `mapstructure:"pool_size"`
	QueueSize int `mapstructure:"queue_size"`
}

// Backtest holds process-level defaults applied when a submission omits a field.
type Backtest struct {
	Strategy             string        `mapstructure:"strategy"`
	DefaultSymbol        string        `mapstructure:"default_symbol"`
	DefaultTimeframe     string        `mapstructure:"default_timeframe"`
	DefaultStartDate     string        `mapstructure:"default_start_date"`
	DefaultEndDate       string        `mapstructure:"default_end_date"`
	InitialCash          float64       `mapstructure:"initial_cash"`
	DataDir              string        `mapstructure:"data_dir"`
	DefaultDataFile      string        `mapstructure:"default_data_file"`
	LimitBars            int           `mapstructure:"limit_bars"`
	DualRun              bool          `mapstructure:"dual_run"`
	UseForexPositionCalc bool          `mapstructure:"use_forex_position_calc"`
	DownloadTimeout      time.Duration `mapstructure:"download_timeout"`
	RetentionDays        int           `mapstructure:"retention_days"`
	RetentionSchedule    string        `mapstructure:"retention_schedule"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "json")
	viper.SetDefault("api.port", 8000)
	viper.SetDefault("worker.pool_size", 4)
	viper.SetDefault("worker.queue_size", 64)
	viper.SetDefault("backtest.strategy", "pullback_window")
	viper.SetDefault("backtest.default_symbol", "XAUUSD")
	viper.SetDefault("backtest.default_timeframe", "5m")
	viper.SetDefault("backtest.default_start_date", "2024-01-01")
	viper.SetDefault("backtest.default_end_date", "2024-12-31")
	viper.SetDefault("backtest.initial_cash", 100000.0)
	viper.SetDefault("backtest.dual_run", true)
	viper.SetDefault("backtest.data_dir", "data")
	viper.SetDefault("backtest.default_data_file", "XAUUSD_5m.csv")
	viper.SetDefault("backtest.download_timeout", 30*time.Second)
	viper.SetDefault("backtest.retention_days", 30)
	viper.SetDefault("backtest.retention_schedule", "@hourly")
	viper.SetDefault("cache.default_expiration", 5*time.Minute)
	viper.SetDefault("cache.cleanup_interval", 10*time.Minute)
}
