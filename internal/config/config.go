package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"LovelyStaking/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
// Token amounts are whole tokens, scaled by Token.Decimals.
type Config struct {
	Token struct {
		Address  string `yaml:"address"`
		Contract string `yaml:"contract"`
		Owner    string `yaml:"owner"`
		Decimals uint8  `yaml:"decimals"`
	} `yaml:"token"`
	Staking struct {
		MaxDaysToClose   uint64   `yaml:"max_days_to_close"`
		MaxTokensPerPool string   `yaml:"max_tokens_per_pool"`
		PoolDurations    []uint64 `yaml:"pool_durations"`
		PoolAPYs         []uint64 `yaml:"pool_apys"`
		StateFile        string   `yaml:"state_file"`
	} `yaml:"staking"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		ReportCron       string `yaml:"report_cron"`
		FundCheckCron    string `yaml:"fund_check_cron"`
		FundLowThreshold string `yaml:"fund_low_threshold"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Dev struct {
		// Balances seeds the in-memory token ledger, address to whole tokens.
		Balances map[string]string `yaml:"balances"`
	} `yaml:"dev"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	// decimals may legitimately be 0, so its default goes in before the file is read
	cfg.Token.Decimals = 18

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("STAKING_TOKEN_ADDRESS"); v != "" {
		cfg.Token.Address = v
	}
	if v := os.Getenv("STAKING_CONTRACT"); v != "" {
		cfg.Token.Contract = v
	}
	if v := os.Getenv("STAKING_OWNER"); v != "" {
		cfg.Token.Owner = v
	}
	if v := os.Getenv("STAKING_MAX_DAYS_TO_CLOSE"); v != "" {
		if days, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Staking.MaxDaysToClose = days
		}
	}
	if v := os.Getenv("STAKING_MAX_TOKENS_PER_POOL"); v != "" {
		cfg.Staking.MaxTokensPerPool = v
	}
	if v := os.Getenv("STAKING_POOL_DURATIONS"); v != "" {
		if list, err := parseList(v); err == nil {
			cfg.Staking.PoolDurations = list
		}
	}
	if v := os.Getenv("STAKING_POOL_APYS"); v != "" {
		if list, err := parseList(v); err == nil {
			cfg.Staking.PoolAPYs = list
		}
	}
	if v := os.Getenv("STAKING_STATE_FILE"); v != "" {
		cfg.Staking.StateFile = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	// Defaults
	if cfg.Staking.MaxDaysToClose == 0 {
		cfg.Staking.MaxDaysToClose = 30
	}
	if cfg.Staking.MaxTokensPerPool == "" {
		cfg.Staking.MaxTokensPerPool = "1000000"
	}
	if len(cfg.Staking.PoolDurations) == 0 && len(cfg.Staking.PoolAPYs) == 0 {
		cfg.Staking.PoolDurations = []uint64{0, 30, 90, 180}
		cfg.Staking.PoolAPYs = []uint64{350, 500, 1200, 2000}
	}
	if cfg.Staking.StateFile == "" {
		cfg.Staking.StateFile = "data/staking_state.json"
	}
	if cfg.Schedule.ReportCron == "" {
		cfg.Schedule.ReportCron = "0 0 9 * * *"
	}
	if cfg.Schedule.FundCheckCron == "" {
		cfg.Schedule.FundCheckCron = "0 0 * * * *"
	}
	if cfg.Schedule.FundLowThreshold == "" {
		cfg.Schedule.FundLowThreshold = "1000"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/lovely_staking.db"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if _, err := model.ParseAddress(c.Token.Address); err != nil {
		return fmt.Errorf("token.address: %w", err)
	}
	if _, err := c.ContractAddress(); err != nil {
		return err
	}
	if _, err := c.OwnerAddress(); err != nil {
		return err
	}
	if len(c.Staking.PoolDurations) != len(c.Staking.PoolAPYs) {
		return fmt.Errorf("staking.pool_durations and staking.pool_apys must have the same length")
	}
	if c.Staking.MaxDaysToClose > model.MaxDurationDays {
		return fmt.Errorf("staking.max_days_to_close: %d exceeds %d days", c.Staking.MaxDaysToClose, model.MaxDurationDays)
	}
	for i, days := range c.Staking.PoolDurations {
		if days > model.MaxDurationDays {
			return fmt.Errorf("staking.pool_durations[%d]: %d exceeds %d days", i, days, model.MaxDurationDays)
		}
	}
	if _, err := c.PoolCap(); err != nil {
		return err
	}
	if _, err := c.FundLowThreshold(); err != nil {
		return err
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	for addr, amount := range c.Dev.Balances {
		if _, err := model.ParseAddress(addr); err != nil {
			return fmt.Errorf("dev.balances: %w", err)
		}
		if _, err := model.ParseTokens(amount, c.Token.Decimals); err != nil {
			return fmt.Errorf("dev.balances[%s]: %w", addr, err)
		}
	}
	return nil
}

// TelegramEnabled reports whether notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func (c *Config) TokenAddress() common.Address {
	return common.HexToAddress(c.Token.Address)
}

func (c *Config) ContractAddress() (common.Address, error) {
	a, err := model.ParseAddress(c.Token.Contract)
	if err != nil {
		return a, fmt.Errorf("token.contract: %w", err)
	}
	return a, nil
}

func (c *Config) OwnerAddress() (common.Address, error) {
	a, err := model.ParseAddress(c.Token.Owner)
	if err != nil {
		return a, fmt.Errorf("token.owner: %w", err)
	}
	return a, nil
}

// PoolCap returns staking.max_tokens_per_pool in base units.
func (c *Config) PoolCap() (uint256.Int, error) {
	v, err := model.ParseTokens(c.Staking.MaxTokensPerPool, c.Token.Decimals)
	if err != nil {
		return v, fmt.Errorf("staking.max_tokens_per_pool: %w", err)
	}
	return v, nil
}

// FundLowThreshold returns schedule.fund_low_threshold in base units.
func (c *Config) FundLowThreshold() (uint256.Int, error) {
	v, err := model.ParseTokens(c.Schedule.FundLowThreshold, c.Token.Decimals)
	if err != nil {
		return v, fmt.Errorf("schedule.fund_low_threshold: %w", err)
	}
	return v, nil
}

func parseList(v string) ([]uint64, error) {
	var out []uint64
	for _, part := range strings.Split(v, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
