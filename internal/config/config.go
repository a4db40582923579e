package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	World     WorldConfig     `toml:"world"`
	Zone      ZoneConfig      `toml:"zone"`
	Player    PlayerConfig    `toml:"player"`
	Rent      RentConfig      `toml:"rent"`
	Mail      MailConfig      `toml:"mail"`
	Database  DatabaseConfig  `toml:"database"`
	Scripting ScriptingConfig `toml:"scripting"`
	Logging   LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Name      string        `toml:"name"`
	Pulse     time.Duration `toml:"pulse"` // one world pulse
	StartTime int64         // set at boot, not from config
}

type WorldConfig struct {
	Dir             string `toml:"dir"` // contains wld/ zon/ mob/ obj/
	MortalStartRoom int32  `toml:"mortal_start_room"`
	ImmortStartRoom int32  `toml:"immort_start_room"`
	FrozenStartRoom int32  `toml:"frozen_start_room"`
	BehaviorTable   string `toml:"behavior_table"` // yaml, optional
	ImmortalLevel   int    `toml:"immortal_level"`
}

type ZoneConfig struct {
	CheckInterval time.Duration `toml:"check_interval"` // reset queue check
	AgeInterval   time.Duration `toml:"age_interval"`   // one age step
}

type PlayerConfig struct {
	File         string        `toml:"file"`
	AutoSave     bool          `toml:"auto_save"`
	AutoSaveTime time.Duration `toml:"auto_save_time"`
	IdleRentTime time.Duration `toml:"idle_rent_time"` // idle players are rented out after this
}

type RentConfig struct {
	Dir              string `toml:"dir"`
	FreeRent         bool   `toml:"free_rent"`
	MaxObjSave       int    `toml:"max_obj_save"`
	MinRentCost      int32  `toml:"min_rent_cost"`
	RentTimeoutDays  int    `toml:"rent_timeout_days"`
	CrashTimeoutDays int    `toml:"crash_timeout_days"`
	ArchiveDir       string `toml:"archive_dir"` // empty: expired files are deleted without a copy
}

type MailConfig struct {
	File       string `toml:"file"`
	StampPrice int32  `toml:"stamp_price"`
	MaxSize    int    `toml:"max_size"`
	MinLevel   int    `toml:"min_level"`
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty disables the directory mirror
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type ScriptingConfig struct {
	Dir string `toml:"dir"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Default returns the built-in configuration, used when no file is given.
func Default() *Config {
	cfg := defaults()
	cfg.Server.StartTime = time.Now().Unix()
	return cfg
}

func (c *Config) validate() error {
	if c.Server.Pulse <= 0 {
		return fmt.Errorf("server.pulse must be positive")
	}
	if c.Zone.CheckInterval < c.Server.Pulse || c.Zone.AgeInterval < c.Server.Pulse {
		return fmt.Errorf("zone intervals must be at least one pulse")
	}
	if c.Mail.MaxSize <= 0 {
		return fmt.Errorf("mail.max_size must be positive")
	}
	return nil
}

// Pulses converts d to a whole number of world pulses, at least one.
func (c *Config) Pulses(d time.Duration) uint64 {
	n := uint64(d / c.Server.Pulse)
	if n == 0 {
		n = 1
	}
	return n
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name:  "worldcore",
			Pulse: 100 * time.Millisecond,
		},
		World: WorldConfig{
			Dir:             "lib/world",
			MortalStartRoom: 3001,
			ImmortStartRoom: 1204,
			FrozenStartRoom: 1202,
			ImmortalLevel:   31,
		},
		Zone: ZoneConfig{
			CheckInterval: 10 * time.Second,
			AgeInterval:   time.Minute,
		},
		Player: PlayerConfig{
			File:         "lib/etc/players",
			AutoSave:     true,
			AutoSaveTime: 5 * time.Minute,
			IdleRentTime: time.Hour,
		},
		Rent: RentConfig{
			Dir:              "lib/plrobjs",
			FreeRent:         true,
			MaxObjSave:       30,
			MinRentCost:      100,
			RentTimeoutDays:  30,
			CrashTimeoutDays: 10,
		},
		Mail: MailConfig{
			File:       "lib/etc/plrmail",
			StampPrice: 150,
			MaxSize:    4096,
			MinLevel:   2,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Scripting: ScriptingConfig{
			Dir: "scripts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
