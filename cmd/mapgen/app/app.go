// Package app wires the map generator: it loads an accumulated record
// set, deduplicates it spatially and renders a static heatmap image.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"runtime"

	"github.com/dustin/go-humanize"

	"github.com/k7rfm/rfmap/internal/record"
	"github.com/k7rfm/rfmap/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	records, title, err := loadRecords(config)
	if err != nil {
		return err
	}

	positioned := records[:0]
	for _, r := range records {
		if r.HasPosition() {
			positioned = append(positioned, r)
		}
	}
	if dropped := len(records) - len(positioned); dropped > 0 {
		logger.Info("ignoring records without a position", slog.Int("count", dropped))
	}

	if !config.NoDedupe {
		before := len(positioned)
		if positioned, err = record.Dedupe(positioned, config.BinStep); err != nil {
			return fmt.Errorf("deduplicating records: %w", err)
		}
		logger.Info("deduplicated records",
			slog.Int("before", before),
			slog.Int("after", len(positioned)),
			slog.Float64("binStep", config.BinStep))
	}

	logger.Info("rendering map",
		slog.String("destination", config.OutputFile),
		slog.Int("records", len(positioned)))

	img, err := NewMapRenderer(RenderConfig{TitlePrefix: title}).Render(positioned)
	if err != nil {
		return fmt.Errorf("rendering map: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	if err = png.Encode(out, img); err != nil {
		_ = out.Close()
		return fmt.Errorf("encoding map: %w", err)
	}
	if err = out.Close(); err != nil {
		return err
	}

	if config.AutoOpen {
		if err = openImage(ctx, config.OutputFile); err != nil {
			logger.Warn("could not open the rendered map", slog.String("error", err.Error()))
		}
	}

	return nil
}

// loadRecords reads the record set from the configured input. Rendering
// from a database session also recovers the listening frequency stored
// with the session, for the map title; a CSV carries no tuning data.
func loadRecords(config *Config) ([]record.Record, string, error) {
	if config.CSVPath != "" {
		records, err := record.ReadCSV(config.CSVPath)
		return records, "", err
	}

	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return nil, "", fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.New(config.DBPath)
	defer store.Close()

	records, err := store.Records(config.SessionID)
	if err != nil {
		return nil, "", err
	}

	return records, sessionFrequency(store, config.SessionID), nil
}

// sessionFrequency formats the session's listening frequency, or returns
// an empty string when the session config does not carry one.
func sessionFrequency(store *storage.Store, sessionID int64) string {
	sessions, err := store.Sessions()
	if err != nil {
		return ""
	}

	for _, s := range sessions {
		if s.ID != sessionID || !s.Config.Valid {
			continue
		}

		var cfg struct {
			ListeningFrequency float64 `json:"listeningFrequency"`
		}
		if err := json.Unmarshal([]byte(s.Config.String), &cfg); err != nil || cfg.ListeningFrequency <= 0 {
			return ""
		}
		return humanize.SI(cfg.ListeningFrequency, "Hz")
	}
	return ""
}

// openImage hands the rendered file to the platform image viewer.
func openImage(ctx context.Context, path string) error {
	var tool string
	switch runtime.GOOS {
	case "darwin":
		tool = "open"
	case "linux":
		tool = "xdg-open"
	default:
		return fmt.Errorf("no image viewer launcher for %s", runtime.GOOS)
	}

	return exec.CommandContext(ctx, tool, path).Start()
}
