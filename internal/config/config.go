package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

type SchedulerConfig struct {
	PagesDir             string `yaml:"pagesDir"`
	BaseFrequencyMinutes int    `yaml:"baseFrequencyMinutes"`
	JitterMinutes        int    `yaml:"jitterMinutes"`
	MinDelayMinutes      int    `yaml:"minDelayMinutes"`
	ErrorBackoffMinutes  int    `yaml:"errorBackoffMinutes"`
	ErrorJitterMinutes   int    `yaml:"errorJitterMinutes"`
	Concurrency          int    `yaml:"concurrency"`
	DryRun               bool   `yaml:"dryRun"`
	Once                 bool   `yaml:"once"`
}

type ScraperConfig struct {
	TimeoutMs int `yaml:"timeoutMs"`
	MaxPages  int `yaml:"maxPages"`
	// FollowForeignHosts lets pagination leave the board's host. Off by
	// default: a pager link to another host usually means a broken
	// heuristic, not a second page.
	FollowForeignHosts bool `yaml:"followForeignHosts"`
}

type HTTPConfig struct {
	TimeoutMs int     `yaml:"timeoutMs"`
	HostRPS   float64 `yaml:"hostRps"`
	HostBurst int     `yaml:"hostBurst"`
}

type RendererConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ControlURL string `yaml:"controlURL"`
	TimeoutMs  int    `yaml:"timeoutMs"`
}

type RobotsConfig struct {
	Respect bool `yaml:"respect"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	HTTP      HTTPConfig      `yaml:"http"`
	Renderer  RendererConfig  `yaml:"renderer"`
	Robots    RobotsConfig    `yaml:"robots"`
}

func Load(path string) *Config {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	cfg.applyDefaults()
	return &cfg
}

// Default returns a config with every default applied and no file read.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Scheduler.PagesDir == "" {
		c.Scheduler.PagesDir = "pages"
	}
	if c.Scheduler.BaseFrequencyMinutes <= 0 {
		c.Scheduler.BaseFrequencyMinutes = 60
	}
	if c.Scheduler.JitterMinutes <= 0 {
		c.Scheduler.JitterMinutes = 30
	}
	if c.Scheduler.MinDelayMinutes <= 0 {
		c.Scheduler.MinDelayMinutes = 5
	}
	if c.Scheduler.ErrorBackoffMinutes <= 0 {
		c.Scheduler.ErrorBackoffMinutes = 20
	}
	if c.Scheduler.ErrorJitterMinutes <= 0 {
		c.Scheduler.ErrorJitterMinutes = 5
	}
	if c.Scheduler.Concurrency <= 0 {
		c.Scheduler.Concurrency = 3
	}
	if c.Scraper.TimeoutMs <= 0 {
		c.Scraper.TimeoutMs = 20000
	}
	if c.Scraper.MaxPages <= 0 {
		c.Scraper.MaxPages = 5
	}
	if c.HTTP.TimeoutMs <= 0 {
		c.HTTP.TimeoutMs = 45000
	}
	if c.Renderer.TimeoutMs <= 0 {
		c.Renderer.TimeoutMs = 40000
	}
}

// ScrapeTimeout returns the per-page scrape timeout as a duration.
func (c *Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutMs) * time.Millisecond
}
