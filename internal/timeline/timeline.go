// Package timeline persists per-tick memory aggregates to a file.
package timeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/charmitro/peak-mem/pkg/model"
)

// Format is a timeline file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the encoding from the file extension. Unknown
// extensions are written as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// WriteFile writes points to path in the format implied by its extension.
func WriteFile(path string, points []model.TimelinePoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create timeline %s: %w", path, err)
	}
	if err := Write(f, FormatFromPath(path), points); err != nil {
		f.Close()
		return fmt.Errorf("write timeline %s: %w", path, err)
	}
	return f.Close()
}

// Write encodes points to w, one record per tick in tick order.
func Write(w io.Writer, format Format, points []model.TimelinePoint) error {
	if points == nil {
		points = []model.TimelinePoint{}
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(points)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(points); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		return writeCSV(w, points)
	default:
		return fmt.Errorf("unknown timeline format %q", format)
	}
}

func writeCSV(w io.Writer, points []model.TimelinePoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "rss_bytes", "vsz_bytes"}); err != nil {
		return err
	}
	for _, p := range points {
		rec := []string{
			p.Timestamp.UTC().Format(time.RFC3339Nano),
			strconv.FormatUint(p.RSSBytes, 10),
			strconv.FormatUint(p.VSZBytes, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
