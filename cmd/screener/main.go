package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"EarningsScreener/internal/api"
	"EarningsScreener/internal/notifier"
	"EarningsScreener/internal/scheduler"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:           "screener",
	Short:         "Screens upcoming earnings for favourable implied volatility term structures",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily schedule, the Telegram command listener and the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		runOnStart, err := cmd.Flags().GetBool("run-on-start")
		if err != nil {
			return err
		}
		cfg, err := loadConfig(configPath, envFile)
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sched := scheduler.NewScheduler(ctx, a.calendar, a.screener, a.notifier, a.recorder)
		sched.ExportDir = cfg.Export.Dir
		sched.Provider = a.provider
		if err := sched.Register(cfg.Schedule.DailyCron); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()

		if a.telegram != nil {
			go a.telegram.StartPolling(ctx, sched.HandleCommand)
			log.Info("telegram polling started")
		}

		srv := api.NewServer(a.recorder, a.engine)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.API.Addr); err != nil {
				log.Errorf("api server: %v", err)
			}
		}()

		if runOnStart {
			log.Info("run-on-start enabled, screening now")
			go func() {
				if _, err := sched.RunScreen(ctx, time.Now()); err != nil {
					log.Errorf("screen on start: %v", err)
				}
			}()
		}

		log.Info("EarningsScreener is running. Press Ctrl+C to stop.")
		<-ctx.Done()
		log.Info("shutdown signal received, stopping...")
		return nil
	},
}

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Screen one earnings session now, record it and send the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		dateStr, err := cmd.Flags().GetString("date")
		if err != nil {
			return err
		}
		quiet, err := cmd.Flags().GetBool("no-notify")
		if err != nil {
			return err
		}
		today := time.Now()
		if dateStr != "" {
			if today, err = time.Parse("2006-01-02", dateStr); err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
		}

		cfg, err := loadConfig(configPath, envFile)
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		n := a.notifier
		if quiet {
			n = nil
		}
		sched := scheduler.NewScheduler(ctx, a.calendar, a.screener, n, a.recorder)
		sched.ExportDir = cfg.Export.Dir
		sched.Provider = a.provider

		run, err := sched.RunScreen(ctx, today)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), notifier.FormatRows(run.Results))
		if len(run.Failures) > 0 {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Symbol", "Kind", "Error"})
			table.SetAutoWrapText(false)
			for _, f := range run.Failures {
				table.Append([]string{f.Symbol, f.Kind, f.Message})
			}
			table.Render()
		}
		if len(run.Filtered) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "below market cap: %s\n", strings.Join(run.Filtered, ", "))
		}
		return nil
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend SYMBOL [SYMBOL...]",
	Short: "Compute recommendations for the given symbols",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath, envFile)
		if err != nil {
			return err
		}
		eng, _ := newEngine(cfg)

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Symbol", "Rating", "Avg Vol", "IV30/RV30", "Slope", "Exp Move", "Error"})
		table.SetAutoWrapText(false)
		failed := 0
		for _, arg := range args {
			symbol := strings.ToUpper(strings.TrimSpace(arg))
			rec, err := eng.Compute(cmd.Context(), symbol)
			if err != nil {
				failed++
				table.Append([]string{symbol, "-", "-", "-", "-", "-", err.Error()})
				continue
			}
			move := "-"
			if rec.ExpectedMove != nil {
				move = *rec.ExpectedMove
			}
			table.Append([]string{symbol, string(rec.Rating), fmt.Sprint(rec.AvgVolume), fmt.Sprint(rec.IV30RV30),
				fmt.Sprint(rec.Slope), move, ""})
		}
		table.Render()
		if failed == len(args) {
			return fmt.Errorf("no recommendation could be computed")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", envOr("CONFIG_PATH", "configs/config.yaml"), "path to the YAML config")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file")
	runCmd.Flags().Bool("run-on-start", os.Getenv("RUN_ON_START") == "true", "screen immediately after starting")
	screenCmd.Flags().String("date", "", "session date (YYYY-MM-DD), defaults to today")
	screenCmd.Flags().Bool("no-notify", false, "skip notifications")
	rootCmd.AddCommand(runCmd, screenCmd, recommendCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}
