package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/planvet/planvet/internal/config"
	"github.com/planvet/planvet/internal/engine"
	"github.com/planvet/planvet/pkg/models"
)

// loadConfig builds the effective configuration, honoring --dir.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if rootDir != "" {
		abs, err := filepath.Abs(rootDir)
		if err != nil {
			return nil, fmt.Errorf("resolving --dir: %w", err)
		}
		cfg.SetRoot(abs)
	}
	return cfg, nil
}

// newEngine loads configuration and constructs the engine. Callers must
// Close the returned engine.
func newEngine() (*engine.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return engine.New(cfg)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, stopping...")
		cancel()
	}()

	return ctx, cancel
}

// writeJSON writes v as indented JSON to path.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// statusString renders a validation status with color.
func statusString(s models.Status) string {
	switch s {
	case models.StatusPass:
		return color.GreenString(string(s))
	case models.StatusWarnings:
		return color.YellowString(string(s))
	case models.StatusFail:
		return color.RedString(string(s))
	}
	return string(s)
}

// findingLine renders one finding with a severity marker.
func findingLine(f models.Finding) string {
	switch f.Severity {
	case models.SeverityError:
		return fmt.Sprintf("  %s %s", color.RedString("✗"), f.String())
	case models.SeverityWarning:
		return fmt.Sprintf("  %s %s", color.YellowString("⚠"), f.String())
	default:
		return fmt.Sprintf("  %s %s", color.CyanString("·"), f.String())
	}
}

// printFindings lists findings, errors first as they arrive sorted.
func printFindings(findings []models.Finding) {
	for _, f := range findings {
		fmt.Println(findingLine(f))
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
