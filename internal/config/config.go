package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath - переменная окружения с путём к YAML конфигурации
const EnvConfigPath = "BLOCKWORLD_CONFIG"

// Config корневая структура конфигурации сервера мира.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Lighting  LightingConfig  `yaml:"lighting"`
	Server    ServerConfig    `yaml:"server"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
	Blocks    BlocksConfig    `yaml:"blocks"`
}

type WorldConfig struct {
	Dir              string `yaml:"dir"`
	Name             string `yaml:"name"`
	Seed             int64  `yaml:"seed"`
	Generator        string `yaml:"generator"`
	SpawnRadius      int    `yaml:"spawn_radius"`
	TickMillis       int    `yaml:"tick_ms"`
	AutosaveSeconds  int    `yaml:"autosave_seconds"`
	BlockUpdateLimit int    `yaml:"block_updates_per_tick"`
}

type LightingConfig struct {
	Enabled       *bool `yaml:"enabled"`
	BudgetPerTick int   `yaml:"budget_per_tick"`
}

type ServerConfig struct {
	RESTPort    int    `yaml:"rest_port"`
	MetricsPort int    `yaml:"metrics_port"`
	Mode        string `yaml:"mode"` // release | debug
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // пусто - шина в памяти
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type StorageConfig struct {
	SnapshotDir     string `yaml:"snapshot_dir"`
	SnapshotOnClose bool   `yaml:"snapshot_on_close"`
}

type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint"` // пусто - трассировка выключена
	ServiceName string `yaml:"service_name"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  bool   `yaml:"file"`
}

type BlocksConfig struct {
	Catalog string `yaml:"catalog"` // YAML с переопределением свойств блоков
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	enabled := true
	return &Config{
		World: WorldConfig{
			Dir:              "world",
			Name:             "world",
			Generator:        "terrain",
			SpawnRadius:      4,
			TickMillis:       50,
			AutosaveSeconds:  300,
			BlockUpdateLimit: 1000,
		},
		Lighting: LightingConfig{
			Enabled:       &enabled,
			BudgetPerTick: 200,
		},
		Server: ServerConfig{Mode: "release"},
		EventBus: EventBusConfig{
			Stream:    "BLOCKWORLD",
			Retention: 24,
			Buffer:    1024,
		},
		Telemetry: TelemetryConfig{ServiceName: "blockworld"},
		Logging:   LoggingConfig{Level: "INFO", File: true},
	}
}

// LightingEnabled сообщает, включено ли освещение (по умолчанию да)
func (l *LightingConfig) LightingEnabled() bool {
	return l.Enabled == nil || *l.Enabled
}

// Tick возвращает период тика мира
func (w *WorldConfig) Tick() time.Duration {
	return time.Duration(w.TickMillis) * time.Millisecond
}

// Autosave возвращает период автосохранения; 0 - выключено
func (w *WorldConfig) Autosave() time.Duration {
	return time.Duration(w.AutosaveSeconds) * time.Second
}

// RetentionDuration возвращает срок хранения событий в стриме
func (e *EventBusConfig) RetentionDuration() time.Duration {
	return time.Duration(e.Retention) * time.Hour
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "BLOCKWORLD_REST_PORT", 8088)
}

// GetMetricsPort возвращает порт Prometheus с поддержкой fallback значений.
// Совпадение с REST портом означает, что /metrics отдаёт REST сервер.
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "BLOCKWORLD_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", берёт путь из BLOCKWORLD_CONFIG; без него возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("конфигурация %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("конфигурация %s: %w", path, err)
	}
	return cfg, nil
}

// Validate проверяет значения, которые нельзя исправить молча
func (c *Config) Validate() error {
	if c.World.Dir == "" {
		return fmt.Errorf("world.dir не задан")
	}
	if c.World.TickMillis <= 0 {
		return fmt.Errorf("world.tick_ms должен быть больше 0, получено %d", c.World.TickMillis)
	}
	if c.World.SpawnRadius < 0 {
		return fmt.Errorf("world.spawn_radius не может быть отрицательным")
	}
	return nil
}
