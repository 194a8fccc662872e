package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type GlobalFlags struct {
	ConfigPath  string
	EnvFile     string
	JSON        bool
	Plain       bool
	Select      string
	ResultsOnly bool
	Timeout     string
	Retries     int
	MaxStale    string
	NoCache     bool
	Verbose     bool
	Network     string
	RPCURL      string
	APIURL      string
	FeeURL      string
}

type Settings struct {
	OutputMode     string
	SelectFields   []string
	ResultsOnly    bool
	Timeout        time.Duration
	Retries        int
	MaxStale       time.Duration
	Verbose        bool
	CacheEnabled   bool
	CachePath      string
	CacheLockPath  string
	AttemptsPath   string
	AttemptsLock   string
	Network        string
	RPCURL         string
	APIURL         string
	APIKey         string
	FeeURL         string
	FeeTTL         time.Duration
	FeeOverrides   map[string]int64
	Contracts      map[string]string
	LazyItemTTL    time.Duration
	ReceiptTimeout time.Duration
}

type fileConfig struct {
	Output  string `yaml:"output"`
	Timeout string `yaml:"timeout"`
	Retries *int   `yaml:"retries"`
	Verbose *bool  `yaml:"verbose"`
	Network string `yaml:"network"`
	RPCURL  string `yaml:"rpc_url"`
	APIURL  string `yaml:"api_url"`
	APIKey  string `yaml:"api_key"`
	Cache   struct {
		Enabled  *bool  `yaml:"enabled"`
		MaxStale string `yaml:"max_stale"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
		LazyTTL  string `yaml:"lazy_item_ttl"`
	} `yaml:"cache"`
	Attempts struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"attempts"`
	Fees struct {
		URL       string           `yaml:"url"`
		TTL       string           `yaml:"ttl"`
		Overrides map[string]int64 `yaml:"overrides"`
	} `yaml:"fees"`
	Contracts      map[string]string `yaml:"contracts"`
	ReceiptTimeout string            `yaml:"receipt_timeout"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	if err := loadEnvFile(flags.EnvFile); err != nil {
		return Settings{}, err
	}
	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.MaxStale < 0 {
		settings.MaxStale = 5 * time.Minute
	}
	if settings.Network == "" {
		settings.Network = "mainnet"
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	cachePath, lockPath, err := defaultCachePaths()
	if err != nil {
		return Settings{}, err
	}
	cacheDir := filepath.Dir(cachePath)
	return Settings{
		OutputMode:     "json",
		Timeout:        30 * time.Second,
		Retries:        2,
		MaxStale:       5 * time.Minute,
		CacheEnabled:   true,
		CachePath:      cachePath,
		CacheLockPath:  lockPath,
		AttemptsPath:   filepath.Join(cacheDir, "attempts.db"),
		AttemptsLock:   filepath.Join(cacheDir, "attempts.lock"),
		Network:        "mainnet",
		FeeTTL:         time.Hour,
		FeeOverrides:   map[string]int64{},
		Contracts:      map[string]string{},
		LazyItemTTL:    10 * time.Minute,
		ReceiptTimeout: 5 * time.Minute,
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "orderfill", "config.yaml"), nil
}

func defaultCachePaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "orderfill")
	return filepath.Join(dir, "cache.db"), filepath.Join(dir, "cache.lock"), nil
}

// loadEnvFile exports a dotenv file into the process environment. Variables
// already set win over the file.
func loadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		path = os.Getenv("ORDERFILL_ENV_FILE")
	}
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Verbose != nil {
		settings.Verbose = *cfg.Verbose
	}
	if cfg.Network != "" {
		settings.Network = cfg.Network
	}
	if cfg.RPCURL != "" {
		settings.RPCURL = cfg.RPCURL
	}
	if cfg.APIURL != "" {
		settings.APIURL = cfg.APIURL
	}
	if cfg.APIKey != "" {
		settings.APIKey = cfg.APIKey
	}
	if cfg.Cache.Enabled != nil {
		settings.CacheEnabled = *cfg.Cache.Enabled
	}
	if cfg.Cache.MaxStale != "" {
		d, err := time.ParseDuration(cfg.Cache.MaxStale)
		if err != nil {
			return fmt.Errorf("config cache.max_stale: %w", err)
		}
		settings.MaxStale = d
	}
	if cfg.Cache.Path != "" {
		settings.CachePath = cfg.Cache.Path
	}
	if cfg.Cache.LockPath != "" {
		settings.CacheLockPath = cfg.Cache.LockPath
	}
	if cfg.Cache.LazyTTL != "" {
		d, err := time.ParseDuration(cfg.Cache.LazyTTL)
		if err != nil {
			return fmt.Errorf("config cache.lazy_item_ttl: %w", err)
		}
		settings.LazyItemTTL = d
	}
	if cfg.Attempts.Path != "" {
		settings.AttemptsPath = cfg.Attempts.Path
	}
	if cfg.Attempts.LockPath != "" {
		settings.AttemptsLock = cfg.Attempts.LockPath
	}
	if cfg.Fees.URL != "" {
		settings.FeeURL = cfg.Fees.URL
	}
	if cfg.Fees.TTL != "" {
		d, err := time.ParseDuration(cfg.Fees.TTL)
		if err != nil {
			return fmt.Errorf("config fees.ttl: %w", err)
		}
		settings.FeeTTL = d
	}
	for k, v := range cfg.Fees.Overrides {
		settings.FeeOverrides[strings.ToUpper(k)] = v
	}
	for k, v := range cfg.Contracts {
		settings.Contracts[strings.ToLower(k)] = v
	}
	if cfg.ReceiptTimeout != "" {
		d, err := time.ParseDuration(cfg.ReceiptTimeout)
		if err != nil {
			return fmt.Errorf("config receipt_timeout: %w", err)
		}
		settings.ReceiptTimeout = d
	}
	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("ORDERFILL_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("ORDERFILL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("ORDERFILL_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("ORDERFILL_MAX_STALE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.MaxStale = d
		}
	}
	if v := os.Getenv("ORDERFILL_NO_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.CacheEnabled = !b
		}
	}
	if v := os.Getenv("ORDERFILL_VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.Verbose = b
		}
	}
	if v := os.Getenv("ORDERFILL_CACHE_PATH"); v != "" {
		settings.CachePath = v
	}
	if v := os.Getenv("ORDERFILL_CACHE_LOCK_PATH"); v != "" {
		settings.CacheLockPath = v
	}
	if v := os.Getenv("ORDERFILL_ATTEMPTS_PATH"); v != "" {
		settings.AttemptsPath = v
	}
	if v := os.Getenv("ORDERFILL_ATTEMPTS_LOCK_PATH"); v != "" {
		settings.AttemptsLock = v
	}
	if v := os.Getenv("ORDERFILL_NETWORK"); v != "" {
		settings.Network = v
	}
	if v := os.Getenv("ORDERFILL_RPC_URL"); v != "" {
		settings.RPCURL = v
	}
	if v := os.Getenv("ORDERFILL_API_URL"); v != "" {
		settings.APIURL = v
	}
	if v := os.Getenv("ORDERFILL_API_KEY"); v != "" {
		settings.APIKey = v
	}
	if v := os.Getenv("ORDERFILL_FEE_URL"); v != "" {
		settings.FeeURL = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if strings.TrimSpace(flags.Select) != "" {
		parts := strings.Split(flags.Select, ",")
		fields := make([]string, 0, len(parts))
		for _, part := range parts {
			f := strings.TrimSpace(part)
			if f != "" {
				fields = append(fields, f)
			}
		}
		settings.SelectFields = fields
	}
	settings.ResultsOnly = flags.ResultsOnly

	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.MaxStale != "" {
		d, err := time.ParseDuration(flags.MaxStale)
		if err != nil {
			return fmt.Errorf("parse --max-stale: %w", err)
		}
		settings.MaxStale = d
	}
	if flags.NoCache {
		settings.CacheEnabled = false
	}
	if flags.Verbose {
		settings.Verbose = true
	}
	if strings.TrimSpace(flags.Network) != "" {
		settings.Network = strings.TrimSpace(flags.Network)
	}
	if strings.TrimSpace(flags.RPCURL) != "" {
		settings.RPCURL = strings.TrimSpace(flags.RPCURL)
	}
	if strings.TrimSpace(flags.APIURL) != "" {
		settings.APIURL = strings.TrimSpace(flags.APIURL)
	}
	if strings.TrimSpace(flags.FeeURL) != "" {
		settings.FeeURL = strings.TrimSpace(flags.FeeURL)
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}
