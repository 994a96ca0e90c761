// Package config loads the runtime settings of the server. Vehicle tuning is
// compiled in and deliberately absent here.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. XDRIVE_SERVER_ADDR.
const EnvPrefix = "XDRIVE"

// ServerConfig holds the HTTP/websocket settings.
type ServerConfig struct {
	Addr              string
	StaticDir         string
	BroadcastInterval time.Duration
	PingInterval      time.Duration
}

// GameConfig holds the tick loop settings.
type GameConfig struct {
	TargetTPS      int
	MaxFrameDelta  time.Duration
	MetricsEvery   time.Duration
	FrameSubBuffer int
}

// HUDConfig controls the console HUD.
type HUDConfig struct {
	Enabled  bool
	Interval time.Duration
}

// InfluxConfig controls telemetry export.
type InfluxConfig struct {
	Enabled bool
	URL     string
	Token   string
	Org     string
	Bucket  string
}

// Config is the whole runtime configuration.
type Config struct {
	LogLevel  string
	LogPretty bool
	SessionID string
	Server    ServerConfig
	Game      GameConfig
	HUD       HUDConfig
	Influx    InfluxConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logLevel", "info")
	v.SetDefault("logPretty", true)
	v.SetDefault("sessionId", "local")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.staticDir", "./dist")
	v.SetDefault("server.broadcastInterval", "16ms")
	v.SetDefault("server.pingInterval", "2s")

	v.SetDefault("game.targetTps", 60)
	v.SetDefault("game.maxFrameDelta", "250ms")
	v.SetDefault("game.metricsEvery", "30s")
	v.SetDefault("game.frameSubBuffer", 4)

	v.SetDefault("hud.enabled", false)
	v.SetDefault("hud.interval", "1s")

	v.SetDefault("influx.enabled", false)
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "x-drive")
	v.SetDefault("influx.bucket", "telemetry")
}

// Load reads defaults, the optional config file at path (json, yaml or toml
// by extension) and XDRIVE_* environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "reading config file %s", path)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		LogLevel:  v.GetString("logLevel"),
		LogPretty: v.GetBool("logPretty"),
		SessionID: v.GetString("sessionId"),
		Server: ServerConfig{
			Addr:              v.GetString("server.addr"),
			StaticDir:         v.GetString("server.staticDir"),
			BroadcastInterval: v.GetDuration("server.broadcastInterval"),
			PingInterval:      v.GetDuration("server.pingInterval"),
		},
		Game: GameConfig{
			TargetTPS:      v.GetInt("game.targetTps"),
			MaxFrameDelta:  v.GetDuration("game.maxFrameDelta"),
			MetricsEvery:   v.GetDuration("game.metricsEvery"),
			FrameSubBuffer: v.GetInt("game.frameSubBuffer"),
		},
		HUD: HUDConfig{
			Enabled:  v.GetBool("hud.enabled"),
			Interval: v.GetDuration("hud.interval"),
		},
		Influx: InfluxConfig{
			Enabled: v.GetBool("influx.enabled"),
			URL:     v.GetString("influx.url"),
			Token:   v.GetString("influx.token"),
			Org:     v.GetString("influx.org"),
			Bucket:  v.GetString("influx.bucket"),
		},
	}
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	switch {
	case c.Server.Addr == "":
		return errors.New("server.addr is empty")
	case c.Game.TargetTPS <= 0:
		return errors.Errorf("game.targetTps must be positive, got %d", c.Game.TargetTPS)
	case c.Game.MaxFrameDelta <= 0:
		return errors.New("game.maxFrameDelta must be positive")
	case c.Influx.Enabled && c.Influx.URL == "":
		return errors.New("influx.url is required when influx is enabled")
	}
	return nil
}
