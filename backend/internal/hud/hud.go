// Package hud renders telemetry for a terminal.
package hud

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"

	"x-drive/backend/internal/game"
	"x-drive/backend/internal/telemetry"
)

const boostBarWidth = 20

// TipInterval is how long each tip stays on screen.
const TipInterval = 5 * time.Second

// DefaultTips are the driving hints shown under the dashboard.
var DefaultTips = Tips{
	"Press Shift to unleash turbo boost energy",
	"Drift through corners by combining steering and brake",
	"Collect checkpoints to record lap times",
	"Q / E let you glance left and right on the highway",
}

// Tips rotate every TipInterval.
type Tips []string

// At returns the tip shown after elapsed time on screen.
func (t Tips) At(elapsed time.Duration) string {
	if len(t) == 0 {
		return ""
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return t[int(elapsed/TipInterval)%len(t)]
}

// FormatLapTime formats seconds as mm:ss.ss.
func FormatLapTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	minutes := int(math.Floor(seconds / 60))
	return fmt.Sprintf("%02d:%05.2f", minutes, math.Mod(seconds, 60))
}

// FormatBestLap formats the best lap, or --:-- before the first one.
func FormatBestLap(best *float64) string {
	if best == nil || *best == 0 {
		return "--:--"
	}
	return FormatLapTime(*best)
}

func boostBar(energy float64) string {
	filled := int(math.Round(energy / 100 * boostBarWidth))
	if filled < 0 {
		filled = 0
	}
	if filled > boostBarWidth {
		filled = boostBarWidth
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", boostBarWidth-filled)
}

// Render draws the dashboard of snap as a table.
func Render(snap telemetry.Snapshot) string {
	var b bytes.Buffer
	t := table.NewWriter()
	t.SetOutputMirror(&b)
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Checkpoint", "Lap", "Best", "Distance", "Speed", "Gear", "Boost", "Drift", "Status"})
	t.AppendRow(table.Row{
		fmt.Sprintf("%d/%d", snap.CheckpointIndex+1, snap.TotalCheckpoints),
		FormatLapTime(snap.LapTime),
		FormatBestLap(snap.BestLap),
		fmt.Sprintf("%.1f km", snap.Distance),
		fmt.Sprintf("%.0f km/h", snap.Speed),
		fmt.Sprintf("G%d", snap.Gear),
		boostBar(snap.BoostEnergy),
		fmt.Sprintf("%.2f", snap.Drift),
		string(snap.Status),
	})
	if snap.Lap > 0 {
		last := "--:--"
		if snap.LastLap != nil {
			last = FormatLapTime(*snap.LastLap)
		}
		t.AppendFooter(table.Row{"Laps", snap.Lap, "Last", last})
	}
	t.Render()
	return b.String()
}

// System prints the dashboard periodically from the game loop.
type System struct {
	store    *telemetry.Store
	tips     Tips
	interval time.Duration

	mu      sync.Mutex
	out     io.Writer
	elapsed time.Duration
	since   time.Duration
}

func NewSystem(store *telemetry.Store, out io.Writer, interval time.Duration) *System {
	return &System{
		store:    store,
		tips:     DefaultTips,
		interval: interval,
		out:      out,
	}
}

// Update accumulates deltaTime and redraws once per interval.
func (s *System) Update(deltaTime time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.elapsed += deltaTime
	s.since += deltaTime
	if s.since < s.interval {
		return nil
	}
	s.since = 0

	frame := Render(s.store.Snapshot()) + s.tips.At(s.elapsed) + "\n"
	if _, err := io.WriteString(s.out, frame); err != nil {
		return errors.Wrap(err, "writing hud")
	}
	return nil
}

func (s *System) GetName() string {
	return "HUDSystem"
}

func (s *System) GetPriority() int {
	return game.PriorityHUD
}
