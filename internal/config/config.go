package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Providers struct {
		// Chain is the option chain source: yahoo, ibkr or mock.
		Chain string `yaml:"chain"`
		// History is the daily bar source: yahoo, ibkr, polygon or mock.
		History     string `yaml:"history"`
		IBKRBaseURL string `yaml:"ibkr_base_url"`
		PolygonKey  string `yaml:"polygon_api_key"`
		FinnhubKey  string `yaml:"finnhub_api_key"`
		Proxy       string `yaml:"proxy"`
	} `yaml:"providers"`
	Calendar struct {
		// Source is finnhub or csv.
		Source  string `yaml:"source"`
		CSVPath string `yaml:"csv_path"`
	} `yaml:"calendar"`
	Screen struct {
		Concurrency int     `yaml:"concurrency"`
		HistoryBars int     `yaml:"history_bars"`
		Strict      bool    `yaml:"strict"`
		StrikeBand  float64 `yaml:"strike_band"`
		MaxStrikes  int     `yaml:"max_strikes"`
		// MarketCapMillions drops symbols whose known market cap is not above it. Zero disables the gate.
		MarketCapMillions float64 `yaml:"market_cap_millions"`
	} `yaml:"screen"`
	Schedule struct {
		DailyCron string `yaml:"daily_cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Discord struct {
		BotToken  string `yaml:"bot_token"`
		ChannelID string `yaml:"channel_id"`
	} `yaml:"discord"`
	Email struct {
		Host     string   `yaml:"host"`
		Port     int      `yaml:"port"`
		Username string   `yaml:"username"`
		Password string   `yaml:"password"`
		From     string   `yaml:"from"`
		To       []string `yaml:"to"`
	} `yaml:"email"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Export struct {
		Dir string `yaml:"dir"`
	} `yaml:"export"`
	API struct {
		Addr string `yaml:"addr"`
	} `yaml:"api"`
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Load reads config from a YAML file, loads envFile into the environment if it exists,
// then applies environment variable overrides and defaults.
func Load(path, envFile string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if envFile != "" {
		// variables already set in the environment win over the file
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"CHAIN_PROVIDER":     &c.Providers.Chain,
		"HISTORY_PROVIDER":   &c.Providers.History,
		"IBKR_BASE_URL":      &c.Providers.IBKRBaseURL,
		"POLYGON_API_KEY":    &c.Providers.PolygonKey,
		"FINNHUB_API_KEY":    &c.Providers.FinnhubKey,
		"HTTPS_PROXY":        &c.Providers.Proxy,
		"CALENDAR_SOURCE":    &c.Calendar.Source,
		"CALENDAR_CSV":       &c.Calendar.CSVPath,
		"CRON_DAILY":         &c.Schedule.DailyCron,
		"TELEGRAM_BOT_TOKEN": &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":   &c.Telegram.ChatID,
		"DISCORD_BOT_TOKEN":  &c.Discord.BotToken,
		"DISCORD_CHANNEL_ID": &c.Discord.ChannelID,
		"SMTP_HOST":          &c.Email.Host,
		"SMTP_USERNAME":      &c.Email.Username,
		"SMTP_PASSWORD":      &c.Email.Password,
		"EMAIL_FROM":         &c.Email.From,
		"SQLITE_PATH":        &c.Database.SQLitePath,
		"EXPORT_DIR":         &c.Export.Dir,
		"API_ADDR":           &c.API.Addr,
		"LOG_LEVEL":          &c.LogLevel,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("EMAIL_TO"); v != "" {
		c.Email.To = splitList(v)
	}

	ints := map[string]*int{
		"SCREEN_CONCURRENCY": &c.Screen.Concurrency,
		"SMTP_PORT":          &c.Email.Port,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}
	if v := os.Getenv("MARKET_CAP_MILLIONS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MARKET_CAP_MILLIONS: %w", err)
		}
		c.Screen.MarketCapMillions = f
	}
	bools := map[string]*bool{
		"SCREEN_STRICT": &c.Screen.Strict,
		"LOG_JSON":      &c.LogJSON,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Providers.Chain == "" {
		c.Providers.Chain = "yahoo"
	}
	if c.Providers.History == "" {
		c.Providers.History = c.Providers.Chain
	}
	if c.Providers.IBKRBaseURL == "" {
		c.Providers.IBKRBaseURL = "https://localhost:5000/v1/api"
	}
	if c.Calendar.Source == "" {
		c.Calendar.Source = "finnhub"
	}
	if c.Screen.Concurrency == 0 {
		c.Screen.Concurrency = 4
	}
	if c.Screen.HistoryBars == 0 {
		c.Screen.HistoryBars = 90
	}
	if c.Screen.StrikeBand == 0 {
		c.Screen.StrikeBand = 0.20
	}
	if c.Screen.MaxStrikes == 0 {
		c.Screen.MaxStrikes = 6
	}
	if c.Schedule.DailyCron == "" {
		// 16:30 on weekdays, after the close
		c.Schedule.DailyCron = "0 30 16 * * 1-5"
	}
	if c.Email.Port == 0 {
		c.Email.Port = 587
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/earnings_screener.db"
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "data/exports"
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks that the selected providers have what they need.
func (c *Config) Validate() error {
	switch c.Providers.Chain {
	case "yahoo", "ibkr", "mock":
	default:
		return fmt.Errorf("providers.chain %q is not one of yahoo, ibkr, mock", c.Providers.Chain)
	}
	switch c.Providers.History {
	case "yahoo", "ibkr", "mock":
	case "polygon":
		if c.Providers.PolygonKey == "" {
			return fmt.Errorf("providers.polygon_api_key is required for polygon history")
		}
	default:
		return fmt.Errorf("providers.history %q is not one of yahoo, ibkr, polygon, mock", c.Providers.History)
	}
	switch c.Calendar.Source {
	case "finnhub":
		if c.Providers.FinnhubKey == "" {
			return fmt.Errorf("providers.finnhub_api_key is required for the finnhub calendar")
		}
	case "csv":
		if c.Calendar.CSVPath == "" {
			return fmt.Errorf("calendar.csv_path is required for the csv calendar")
		}
	default:
		return fmt.Errorf("calendar.source %q is not one of finnhub, csv", c.Calendar.Source)
	}
	if c.Screen.Concurrency < 1 {
		return fmt.Errorf("screen.concurrency must be positive")
	}
	if c.Screen.StrikeBand <= 0 || c.Screen.StrikeBand >= 1 {
		return fmt.Errorf("screen.strike_band must be in (0, 1)")
	}
	if c.Screen.MarketCapMillions < 0 {
		return fmt.Errorf("screen.market_cap_millions must not be negative")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if (c.Discord.BotToken == "") != (c.Discord.ChannelID == "") {
		return fmt.Errorf("discord.bot_token and discord.channel_id must be set together")
	}
	if c.Email.Host != "" && (c.Email.From == "" || len(c.Email.To) == 0) {
		return fmt.Errorf("email.from and email.to are required when email.host is set")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
