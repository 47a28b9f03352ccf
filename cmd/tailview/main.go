package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"tailview/internal/buildinfo"
	"tailview/pkg/config"
	"tailview/pkg/core"
	"tailview/pkg/fetch"
	"tailview/pkg/logwindow"
	tuimodel "tailview/pkg/tui/model"
)

var (
	configPath  string
	backendFlag string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tailview",
	Short: "Live log viewer for tailviewd",
	Long:  "Tailview is a TUI that tails a windowed slice of collected logs, with backward pagination into history and a live forward poll.",
	RunE:  runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to tailview.yaml (defaults to built-in config)")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "backend address, overrides the config")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	if backendFlag != "" {
		cfg.Viewer.Backend = backendFlag
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "config: %s\n", e)
		}
		return nil, fmt.Errorf("invalid configuration (%d error(s))", len(errs))
	}
	return cfg, nil
}

// --- Root: TUI ---

func runTUI(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := fetch.NewClient(cfg.Viewer.Backend)
	if err != nil {
		return err
	}

	controller := logwindow.NewController(logwindow.NewStore(), client, logwindow.Options{
		Slice: cfg.Viewer.Window.Std(),
		Limit: cfg.Viewer.PageLimit,
	})

	app := tuimodel.New(controller, cfg.Viewer.Services, cfg.Viewer.PollInterval.Std())
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = p.Run()
	return err
}

// --- Query ---

var (
	queryJSON    bool
	querySince   time.Duration
	queryLimit   int
	queryService string
	queryOldest  bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Fetch one page of logs and print it",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client, err := fetch.NewClient(cfg.Viewer.Backend)
		if err != nil {
			return err
		}

		now := time.Now()
		startMs := now.Add(-querySince).UnixMilli()
		endMs := now.UnixMilli()

		// Keep the newest page by default, like the live viewer does.
		direction := core.DirectionBackward
		if queryOldest {
			direction = core.DirectionForward
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		entries, err := client.Fetch(ctx, startMs, endMs, queryLimit, direction)
		if err != nil {
			return err
		}

		if queryService != "" {
			filtered := entries[:0]
			for _, e := range entries {
				if e.Service == queryService {
					filtered = append(filtered, e)
				}
			}
			entries = filtered
		}

		if queryJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		printEntryTable(entries)
		return nil
	},
}

func init() {
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().DurationVar(&querySince, "since", time.Hour, "how far back to query")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 500, "maximum entries to fetch")
	queryCmd.Flags().StringVar(&queryService, "service", "", "only show entries from this service")
	queryCmd.Flags().BoolVar(&queryOldest, "oldest", false, "keep the oldest page instead of the newest when truncating")
}

func printEntryTable(entries []core.LogEntry) {
	if len(entries) == 0 {
		fmt.Println("no entries")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"TIME", "SERVICE", "LINE"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.TimeStr, e.Service, e.Raw})
	}
	if isatty.IsTerminal(os.Stdout.Fd()) {
		t.SetStyle(table.StyleRounded)
	} else {
		t.SetStyle(table.StyleDefault)
		t.Style().Options.DrawBorder = false
	}
	t.Render()
}

// --- Version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("tailview %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	},
}
