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
	ConfigPath     string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	EnableCommands string
	Timeout        string
	Retries        int
	NoCache        bool
}

type Settings struct {
	OutputMode        string
	SelectFields      []string
	ResultsOnly       bool
	EnableCommands    []string
	Timeout           time.Duration
	Retries           int
	CacheEnabled      bool
	CachePath         string
	CacheLockPath     string
	WorkflowStorePath string
	WorkflowLockPath  string

	NodeURL          string
	ExplorerBaseURL  string
	WalletServiceURL string
	CatalogURL       string
	PanoraBaseURL    string
	PanoraAPIKey     string

	DefaultSlippagePct float64
	DefaultUser        string
	LogLevel           string
}

type fileConfig struct {
	Output  string `yaml:"output"`
	Timeout string `yaml:"timeout"`
	Retries *int   `yaml:"retries"`
	Cache   struct {
		Enabled  *bool  `yaml:"enabled"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"cache"`
	Workflows struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"workflows"`
	Node struct {
		URL         string `yaml:"url"`
		ExplorerURL string `yaml:"explorer_url"`
	} `yaml:"node"`
	Wallet struct {
		ServiceURL string `yaml:"service_url"`
	} `yaml:"wallet"`
	Catalog struct {
		URL string `yaml:"url"`
	} `yaml:"catalog"`
	Panora struct {
		URL       string `yaml:"url"`
		APIKey    string `yaml:"api_key"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"panora"`
	Swap struct {
		DefaultSlippagePct *float64 `yaml:"default_slippage_pct"`
	} `yaml:"swap"`
	User string `yaml:"user"`
	Log  string `yaml:"log"`
}

func Load(flags GlobalFlags) (Settings, error) {
	_ = godotenv.Load()

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

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 15 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.DefaultSlippagePct <= 0 {
		settings.DefaultSlippagePct = 0.5
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
		OutputMode:         "json",
		Timeout:            15 * time.Second,
		Retries:            2,
		CacheEnabled:       true,
		CachePath:          cachePath,
		CacheLockPath:      lockPath,
		WorkflowStorePath:  filepath.Join(cacheDir, "workflows.db"),
		WorkflowLockPath:   filepath.Join(cacheDir, "workflows.lock"),
		NodeURL:            "https://fullnode.mainnet.aptoslabs.com/v1",
		ExplorerBaseURL:    "https://explorer.aptoslabs.com",
		PanoraBaseURL:      "https://api.panora.exchange",
		DefaultSlippagePct: 0.5,
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
	return filepath.Join(base, "aptagent", "config.yaml"), nil
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
	dir := filepath.Join(base, "aptagent")
	return filepath.Join(dir, "cache.db"), filepath.Join(dir, "cache.lock"), nil
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
	if cfg.Cache.Enabled != nil {
		settings.CacheEnabled = *cfg.Cache.Enabled
	}
	if cfg.Cache.Path != "" {
		settings.CachePath = cfg.Cache.Path
	}
	if cfg.Cache.LockPath != "" {
		settings.CacheLockPath = cfg.Cache.LockPath
	}
	if cfg.Workflows.Path != "" {
		settings.WorkflowStorePath = cfg.Workflows.Path
	}
	if cfg.Workflows.LockPath != "" {
		settings.WorkflowLockPath = cfg.Workflows.LockPath
	}
	if cfg.Node.URL != "" {
		settings.NodeURL = cfg.Node.URL
	}
	if cfg.Node.ExplorerURL != "" {
		settings.ExplorerBaseURL = cfg.Node.ExplorerURL
	}
	if cfg.Wallet.ServiceURL != "" {
		settings.WalletServiceURL = cfg.Wallet.ServiceURL
	}
	if cfg.Catalog.URL != "" {
		settings.CatalogURL = cfg.Catalog.URL
	}
	if cfg.Panora.URL != "" {
		settings.PanoraBaseURL = cfg.Panora.URL
	}
	if cfg.Panora.APIKey != "" {
		settings.PanoraAPIKey = cfg.Panora.APIKey
	}
	if cfg.Panora.APIKeyEnv != "" {
		settings.PanoraAPIKey = os.Getenv(cfg.Panora.APIKeyEnv)
	}
	if cfg.Swap.DefaultSlippagePct != nil {
		settings.DefaultSlippagePct = *cfg.Swap.DefaultSlippagePct
	}
	if cfg.User != "" {
		settings.DefaultUser = cfg.User
	}
	if cfg.Log != "" {
		settings.LogLevel = strings.ToLower(cfg.Log)
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("APT_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("APT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("APT_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("APT_NO_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.CacheEnabled = !b
		}
	}
	if v := os.Getenv("APT_CACHE_PATH"); v != "" {
		settings.CachePath = v
	}
	if v := os.Getenv("APT_CACHE_LOCK_PATH"); v != "" {
		settings.CacheLockPath = v
	}
	if v := os.Getenv("APT_WORKFLOWS_PATH"); v != "" {
		settings.WorkflowStorePath = v
	}
	if v := os.Getenv("APT_WORKFLOWS_LOCK_PATH"); v != "" {
		settings.WorkflowLockPath = v
	}
	if v := os.Getenv("APT_NODE_URL"); v != "" {
		settings.NodeURL = v
	}
	if v := os.Getenv("APT_EXPLORER_URL"); v != "" {
		settings.ExplorerBaseURL = v
	}
	if v := os.Getenv("APT_WALLET_SERVICE_URL"); v != "" {
		settings.WalletServiceURL = v
	}
	if v := os.Getenv("APT_CATALOG_URL"); v != "" {
		settings.CatalogURL = v
	}
	if v := os.Getenv("APT_PANORA_URL"); v != "" {
		settings.PanoraBaseURL = v
	}
	if v := os.Getenv("APT_PANORA_API_KEY"); v != "" {
		settings.PanoraAPIKey = v
	}
	if v := os.Getenv("APT_SLIPPAGE_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			settings.DefaultSlippagePct = f
		}
	}
	if v := os.Getenv("APT_USER"); v != "" {
		settings.DefaultUser = v
	}
	if v := os.Getenv("APT_LOG"); v != "" {
		settings.LogLevel = strings.ToLower(v)
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

	if strings.TrimSpace(flags.EnableCommands) != "" {
		parts := strings.Split(flags.EnableCommands, ",")
		allowed := make([]string, 0, len(parts))
		for _, part := range parts {
			v := strings.TrimSpace(part)
			if v != "" {
				allowed = append(allowed, v)
			}
		}
		settings.EnableCommands = allowed
	}

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
	if flags.NoCache {
		settings.CacheEnabled = false
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}
