package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logger struct {
		Verbosity string `yaml:"verbosity"`
		Format    string `yaml:"format"`
	} `yaml:"logger"`
	Network     string `yaml:"network"`
	RpcProvider string `yaml:"rpcProvider"`
	Crawler     struct {
		Host        string        `yaml:"host"`
		Port        int           `yaml:"port"`
		MetricsPath string        `yaml:"metricsPath"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"crawler"`
	Dashboard struct {
		ListenAddress string `yaml:"listenAddress"`
		ListenPort    int    `yaml:"listenPort"`
		RouteURL      string `yaml:"routeUrl"`
		Title         string `yaml:"title"`
		EtherscanURL  string `yaml:"etherscanUrl"`
		HistoryDays   int    `yaml:"historyDays"`
		Intervals     struct {
			Request time.Duration `yaml:"request"`
			Minute  time.Duration `yaml:"minute"`
			Daily   time.Duration `yaml:"daily"`
		} `yaml:"intervals"`
	} `yaml:"dashboard"`
	Registry struct {
		PublicationURL string        `yaml:"publicationUrl"`
		Filepath       string        `yaml:"filepath"`
		CacheTTL       time.Duration `yaml:"cacheTTL"`
	} `yaml:"registry"`
	Economics struct {
		// InitialSupply is expressed in NU, not NuNits.
		InitialSupply string `yaml:"initialSupply"`
	} `yaml:"economics"`
	History struct {
		Path      string        `yaml:"path"`
		Retention time.Duration `yaml:"retention"`
	} `yaml:"history"`
	Geolocation struct {
		Path     string        `yaml:"path"`
		CacheTTL time.Duration `yaml:"cacheTTL"`
	} `yaml:"geolocation"`
	StakerEndpoint struct {
		Rate  float64 `yaml:"rate"`
		Burst int     `yaml:"burst"`
	} `yaml:"stakerEndpoint"`
}

const (
	DefaultPublicationURL = "https://raw.githubusercontent.com/nucypher/nucypher/master/nucypher/blockchain/eth/contract_registry/%s/contract_registry.json"
	DefaultInitialSupply  = "1000000000"
)

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, err
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ApplyDefaults fills zero-valued settings.
func (c *Config) ApplyDefaults() {
	if c.Logger.Verbosity == "" {
		c.Logger.Verbosity = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "json"
	}
	if c.Network == "" {
		c.Network = "mainnet"
	}
	if c.Crawler.Host == "" {
		c.Crawler.Host = "localhost"
	}
	if c.Crawler.Port == 0 {
		c.Crawler.Port = 9555
	}
	if c.Crawler.MetricsPath == "" {
		c.Crawler.MetricsPath = "stats"
	}
	if c.Crawler.Timeout == 0 {
		c.Crawler.Timeout = 10 * time.Second
	}
	if c.Dashboard.ListenPort == 0 {
		c.Dashboard.ListenPort = 8050
	}
	if c.Dashboard.RouteURL == "" {
		c.Dashboard.RouteURL = "/"
	}
	if c.Dashboard.Title == "" {
		c.Dashboard.Title = "Network Monitor"
	}
	if c.Dashboard.EtherscanURL == "" {
		c.Dashboard.EtherscanURL = "https://etherscan.io"
	}
	if c.Dashboard.HistoryDays == 0 {
		c.Dashboard.HistoryDays = 30
	}
	if c.Dashboard.Intervals.Request == 0 {
		c.Dashboard.Intervals.Request = 15 * time.Second
	}
	if c.Dashboard.Intervals.Minute == 0 {
		c.Dashboard.Intervals.Minute = time.Minute
	}
	if c.Dashboard.Intervals.Daily == 0 {
		c.Dashboard.Intervals.Daily = 24 * time.Hour
	}
	if c.Registry.PublicationURL == "" {
		c.Registry.PublicationURL = DefaultPublicationURL
	}
	if c.Registry.CacheTTL == 0 {
		c.Registry.CacheTTL = 10 * time.Minute
	}
	if c.Economics.InitialSupply == "" {
		c.Economics.InitialSupply = DefaultInitialSupply
	}
	if c.History.Path == "" {
		c.History.Path = "data/history.db"
	}
	if c.History.Retention == 0 {
		// the crawler keeps five weeks of measurements
		c.History.Retention = 5 * 7 * 24 * time.Hour
	}
	if c.Geolocation.Path == "" {
		c.Geolocation.Path = "data/geolocation"
	}
	if c.Geolocation.CacheTTL == 0 {
		c.Geolocation.CacheTTL = time.Hour
	}
	if c.StakerEndpoint.Rate == 0 {
		c.StakerEndpoint.Rate = 5
	}
	if c.StakerEndpoint.Burst == 0 {
		c.StakerEndpoint.Burst = 10
	}
}

func (c *Config) Validate() error {
	if c.Crawler.Port < 0 || c.Crawler.Port > 65535 {
		return fmt.Errorf("invalid crawler port: %d", c.Crawler.Port)
	}
	if c.Dashboard.ListenPort < 0 || c.Dashboard.ListenPort > 65535 {
		return fmt.Errorf("invalid dashboard listen port: %d", c.Dashboard.ListenPort)
	}
	if c.Dashboard.HistoryDays < 0 {
		return fmt.Errorf("invalid history days: %d", c.Dashboard.HistoryDays)
	}
	if c.StakerEndpoint.Rate < 0 {
		return fmt.Errorf("invalid staker endpoint rate: %v", c.StakerEndpoint.Rate)
	}
	return nil
}

// CrawlerURL is the address of the crawler's metrics endpoint.
func (c *Config) CrawlerURL() string {
	return fmt.Sprintf("http://%s:%d/%s", c.Crawler.Host, c.Crawler.Port, c.Crawler.MetricsPath)
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Dashboard.ListenAddress, c.Dashboard.ListenPort)
}
