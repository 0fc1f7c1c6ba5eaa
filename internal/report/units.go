package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Unit forces byte values into a fixed unit. The zero value scales
// automatically.
type Unit string

const (
	UnitAuto Unit = ""
	UnitB    Unit = "B"
	UnitKB   Unit = "KB"
	UnitMB   Unit = "MB"
	UnitGB   Unit = "GB"
	UnitKiB  Unit = "KiB"
	UnitMiB  Unit = "MiB"
	UnitGiB  Unit = "GiB"
)

var unitSize = map[Unit]float64{
	UnitB:   1,
	UnitKB:  1e3,
	UnitMB:  1e6,
	UnitGB:  1e9,
	UnitKiB: 1 << 10,
	UnitMiB: 1 << 20,
	UnitGiB: 1 << 30,
}

// Units lists the accepted unit names in display order.
var Units = []Unit{UnitB, UnitKB, UnitMB, UnitGB, UnitKiB, UnitMiB, UnitGiB}

// ParseUnit accepts one of Units, matched exactly, or "" for automatic.
func ParseUnit(s string) (Unit, error) {
	if s == "" {
		return UnitAuto, nil
	}
	if _, ok := unitSize[Unit(s)]; ok {
		return Unit(s), nil
	}
	names := make([]string, len(Units))
	for i, u := range Units {
		names[i] = string(u)
	}
	return UnitAuto, fmt.Errorf("invalid unit %q (use one of: %s)", s, strings.Join(names, ", "))
}

// FormatBytes renders b in unit u, or with binary auto-scaling.
func FormatBytes(b uint64, u Unit) string {
	switch u {
	case UnitAuto:
		return humanize.IBytes(b)
	case UnitB:
		return strconv.FormatUint(b, 10) + " B"
	}
	size, ok := unitSize[u]
	if !ok {
		return humanize.IBytes(b)
	}
	return fmt.Sprintf("%.1f %s", float64(b)/size, u)
}

// formatDuration renders d the way run summaries show it.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// ParseSize parses a threshold such as "512M", "1.5GB" or "2GiB" into bytes.
func ParseSize(s string) (uint64, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid size %q (use formats like 512M, 1G, 1.5GB): %w", s, err)
	}
	return n, nil
}
