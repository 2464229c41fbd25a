package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Browser BrowserConfig `yaml:"browser" mapstructure:"browser"`
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// OutputConfig controls where documents and reports land on disk.
type OutputConfig struct {
	BaseDir       string `yaml:"base_dir" mapstructure:"base_dir"`
	PrimaryDir    string `yaml:"primary_dir" mapstructure:"primary_dir"`
	FallbackDir   string `yaml:"fallback_dir" mapstructure:"fallback_dir"`
	FailureReport string `yaml:"failure_report" mapstructure:"failure_report"`
	ScreenshotDir string `yaml:"screenshot_dir" mapstructure:"screenshot_dir"`
}

// BrowserConfig configures the headless browser and navigation bounds.
type BrowserConfig struct {
	Headless        bool `yaml:"headless" mapstructure:"headless"`
	NavTimeoutSecs  int  `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	WaitTimeoutSecs int  `yaml:"wait_timeout_secs" mapstructure:"wait_timeout_secs"`
}

// SourcesConfig holds per-source entry points.
type SourcesConfig struct {
	BSE BSEConfig `yaml:"bse" mapstructure:"bse"`
	NSE NSEConfig `yaml:"nse" mapstructure:"nse"`
}

// BSEConfig configures the primary report source.
type BSEConfig struct {
	IndexURL string `yaml:"index_url" mapstructure:"index_url"`
}

// NSEConfig configures the fallback report source.
type NSEConfig struct {
	QuoteURLTemplate string `yaml:"quote_url_template" mapstructure:"quote_url_template"`
}

// FetchConfig configures document downloads.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	HostRate    float64 `yaml:"host_rate" mapstructure:"host_rate"`
	HostBurst   int     `yaml:"host_burst" mapstructure:"host_burst"`
}

// StoreConfig configures the run-history database. An empty path disables
// history recording.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("output.base_dir", ".")
	v.SetDefault("output.primary_dir", "BSE_AnnualReports")
	v.SetDefault("output.fallback_dir", "NSE_AnnualReports")
	v.SetDefault("output.failure_report", "failed_downloads.xlsx")
	v.SetDefault("output.screenshot_dir", ".")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout_secs", 30)
	v.SetDefault("browser.wait_timeout_secs", 15)
	v.SetDefault("sources.bse.index_url", "https://www.bseindia.com/corporates/HistoricalAnnualReport.html")
	v.SetDefault("sources.nse.quote_url_template", "https://www.nseindia.com/get-quotes/equity?symbol=%s")
	v.SetDefault("fetch.user_agent", "report-harvester/1.0")
	v.SetDefault("fetch.timeout_secs", 300)
	v.SetDefault("fetch.host_rate", 2)
	v.SetDefault("fetch.host_burst", 2)
	v.SetDefault("store.path", "harvest.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
