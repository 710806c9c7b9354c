// Package snapshot writes cycle data to JSON files under a data directory
// when the SAVE switch is on.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hetulpatel/sportsarb/internal/arb"
	"github.com/hetulpatel/sportsarb/internal/collectors"
	"github.com/hetulpatel/sportsarb/internal/logging"
)

const DefaultDir = "data"

// Enabled reports whether SAVE holds one of the accepted truthy values.
func Enabled() bool {
	return Truthy(os.Getenv("SAVE"))
}

func Truthy(v string) bool {
	switch v {
	case "1", "true", "True":
		return true
	}
	return false
}

// Writer dumps opportunities and normalized venue entries.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = DefaultDir
	}
	return &Writer{dir: dir}
}

func (w *Writer) Dir() string {
	return w.dir
}

func (w *Writer) Name() string {
	return "snapshot"
}

// Publish writes arbitrage_opportunities_<sport>.json.
func (w *Writer) Publish(_ context.Context, sport string, opps []arb.Opportunity) error {
	if opps == nil {
		opps = []arb.Opportunity{}
	}
	path := filepath.Join(w.dir, fmt.Sprintf("arbitrage_opportunities_%s.json", sport))
	if err := w.writeJSON(path, opps); err != nil {
		return err
	}
	logging.Infof("[snapshot] saved %d %s opportunities to %s", len(opps), sport, path)
	return nil
}

// SaveEntries writes one venue's normalized entries keyed by match key.
func (w *Writer) SaveEntries(venue collectors.Venue, sport string, entries map[string]collectors.Entry) error {
	path := filepath.Join(w.dir, fmt.Sprintf("normalized_%s_%s.json", venue, sport))
	return w.writeJSON(path, entries)
}

// SaveRaw writes payload to <name>.json, e.g. a venue's entry list as fetched.
func (w *Writer) SaveRaw(name string, payload any) error {
	return w.writeJSON(filepath.Join(w.dir, name+".json"), payload)
}

func (w *Writer) Close() error {
	return nil
}

func (w *Writer) writeJSON(path string, payload any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}
