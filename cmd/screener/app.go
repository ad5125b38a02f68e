package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"EarningsScreener/internal/calendar"
	"EarningsScreener/internal/collector"
	"EarningsScreener/internal/config"
	"EarningsScreener/internal/notifier"
	"EarningsScreener/internal/recorder"
	"EarningsScreener/internal/strategy"
)

// app holds the components wired from one configuration.
type app struct {
	cfg      *config.Config
	engine   *strategy.Engine
	screener *strategy.Screener
	calendar calendar.Source
	notifier notifier.Notifier
	telegram *notifier.TelegramNotifier
	recorder recorder.Recorder
	provider string
}

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		log.Warnf("unknown log level %q, using info", cfg.LogLevel)
	} else {
		log.SetLevel(level)
	}
	if cfg.LogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	}
	log.SetOutput(os.Stderr)
}

func loadConfig(path, envFile string) (*config.Config, error) {
	cfg, err := config.Load(path, envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func chainProvider(cfg *config.Config) collector.OptionChainProvider {
	switch cfg.Providers.Chain {
	case "ibkr":
		return collector.NewIBKRFetcher(cfg.Providers.IBKRBaseURL, cfg.Screen.StrikeBand, cfg.Screen.MaxStrikes)
	case "mock":
		return &collector.MockFetcher{Price: 100}
	default:
		return collector.NewYahooFetcher(cfg.Providers.Proxy)
	}
}

func historyProvider(cfg *config.Config, chains collector.OptionChainProvider) collector.PriceHistoryProvider {
	// reuse the chain client when it also serves history so one gateway session is shared
	if h, ok := chains.(collector.PriceHistoryProvider); ok && h.Name() == cfg.Providers.History {
		return h
	}
	switch cfg.Providers.History {
	case "polygon":
		return collector.NewPolygonFetcher(cfg.Providers.PolygonKey)
	case "ibkr":
		return collector.NewIBKRFetcher(cfg.Providers.IBKRBaseURL, cfg.Screen.StrikeBand, cfg.Screen.MaxStrikes)
	case "mock":
		return &collector.MockFetcher{Price: 100}
	default:
		return collector.NewYahooFetcher(cfg.Providers.Proxy)
	}
}

// newEngine wires only the computation path; enough for one-off recommendations.
func newEngine(cfg *config.Config) (*strategy.Engine, string) {
	chains := chainProvider(cfg)
	history := historyProvider(cfg, chains)
	log.Infof("option chains: %s, price history: %s", chains.Name(), history.Name())

	evalOpts := strategy.DefaultEvalOptions()
	evalOpts.Strict = cfg.Screen.Strict
	evalOpts.StrictOpts.StrikeBand = cfg.Screen.StrikeBand
	evalOpts.StrictOpts.MaxStrikes = cfg.Screen.MaxStrikes

	opts := collector.DefaultOptions()
	opts.HistoryBars = cfg.Screen.HistoryBars
	col := collector.NewCollector(chains, history, evalOpts.CollectorOptions(opts))
	return strategy.NewEngine(col, evalOpts), chains.Name() + "/" + history.Name()
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	a.engine, a.provider = newEngine(cfg)

	var filter collector.MarketCapFilter = collector.AllowAllFilter{}
	if cfg.Screen.MarketCapMillions > 0 && cfg.Providers.FinnhubKey != "" {
		filter = collector.NewFinnhubMarketCapFilter(cfg.Providers.FinnhubKey, cfg.Providers.Proxy)
	}
	a.screener = strategy.NewScreener(a.engine, filter, cfg.Screen.MarketCapMillions, cfg.Screen.Concurrency)

	switch cfg.Calendar.Source {
	case "csv":
		a.calendar = calendar.NewCSVSource(cfg.Calendar.CSVPath)
	default:
		a.calendar = calendar.NewFinnhubSource(cfg.Providers.FinnhubKey)
	}

	var channels notifier.Multi
	if cfg.Telegram.BotToken != "" {
		a.telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Providers.Proxy)
		channels = append(channels, a.telegram)
	}
	if cfg.Discord.BotToken != "" {
		d, err := notifier.NewDiscordNotifier(cfg.Discord.BotToken, cfg.Discord.ChannelID)
		if err != nil {
			return nil, err
		}
		channels = append(channels, d)
	}
	if cfg.Email.Host != "" {
		e := cfg.Email
		channels = append(channels, notifier.NewEmailNotifier(e.Host, e.Port, e.Username, e.Password, e.From, e.To))
	}
	if len(channels) > 0 {
		a.notifier = channels
	} else {
		log.Warn("no notification channel configured")
	}

	sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
	if err != nil {
		log.Warnf("init sqlite recorder failed, using noop: %v", err)
		a.recorder = recorder.NewNoopRecorder()
	} else {
		a.recorder = sr
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.recorder.Close(); err != nil {
		log.Errorf("close recorder: %v", err)
	}
}
