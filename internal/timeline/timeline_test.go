package timeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/charmitro/peak-mem/pkg/model"
)

func testPoints() []model.TimelinePoint {
	base := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	return []model.TimelinePoint{
		{Timestamp: base, RSSBytes: 1024, VSZBytes: 4096},
		{Timestamp: base.Add(100 * time.Millisecond), RSSBytes: 2048, VSZBytes: 8192},
		{Timestamp: base.Add(200 * time.Millisecond)},
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"out.json", FormatJSON},
		{"out.CSV", FormatCSV},
		{"dir/out.yaml", FormatYAML},
		{"out.yml", FormatYAML},
		{"out", FormatJSON},
		{"out.txt", FormatJSON},
	}
	for _, tt := range tests {
		if got := FormatFromPath(tt.path); got != tt.want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatJSON, testPoints()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if got[1]["rss_bytes"].(float64) != 2048 || got[1]["vsz_bytes"].(float64) != 8192 {
		t.Errorf("record 1 = %v", got[1])
	}
	if _, ok := got[0]["timestamp"]; !ok {
		t.Error("record has no timestamp")
	}
	if _, ok := got[0]["processes"]; ok {
		t.Error("aggregate-only record has processes")
	}
}

func TestWrite_JSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatJSON, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty timeline = %q, want []", buf.String())
	}
}

func TestWrite_CSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatCSV, testPoints()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("got %d rows, want header + 3", len(recs))
	}
	if strings.Join(recs[0], ",") != "timestamp,rss_bytes,vsz_bytes" {
		t.Errorf("header = %v", recs[0])
	}
	if recs[1][0] != "2026-05-06T07:08:09Z" || recs[1][1] != "1024" || recs[1][2] != "4096" {
		t.Errorf("row 1 = %v", recs[1])
	}
	if recs[3][1] != "0" {
		t.Errorf("row 3 rss = %q, want 0", recs[3][1])
	}
}

func TestWrite_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatYAML, testPoints()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var got []model.TimelinePoint
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, buf.String())
	}
	if len(got) != 3 || got[1].RSSBytes != 2048 {
		t.Errorf("decoded = %+v", got)
	}
	if !got[2].Timestamp.Equal(testPoints()[2].Timestamp) {
		t.Errorf("timestamp = %v", got[2].Timestamp)
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, Format("xml"), testPoints()); err == nil {
		t.Error("Write with unknown format succeeded")
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"t.json", "t.csv", "t.yaml"} {
		path := filepath.Join(dir, name)
		if err := WriteFile(path, testPoints()); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", name)
		}
	}

	if err := WriteFile(filepath.Join(dir, "missing", "t.json"), testPoints()); err == nil {
		t.Error("WriteFile into a missing directory succeeded")
	}
}
