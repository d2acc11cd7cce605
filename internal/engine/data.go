package engine

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"backtest-api/pkg/httpclient"
	"backtest-api/pkg/logger"
)

// Loader yields the bar stream for a data source with optional date bounds.
type Loader interface {
	Load(ctx context.Context, source string, start, end *time.Time) ([]Bar, error)
}

// CSVLoader reads OHLCV candles from local CSV files or remote CSV URLs.
type CSVLoader struct {
	dataDir     string
	defaultFile string
	client      httpclient.HTTPClient
	log         *logger.Logger
}

func NewCSVLoader(dataDir, defaultFile string, client httpclient.HTTPClient, log *logger.Logger) *CSVLoader {
	return &CSVLoader{
		dataDir:     dataDir,
		defaultFile: defaultFile,
		client:      client,
		log:         log,
	}
}

func (l *CSVLoader) Load(ctx context.Context, source string, start, end *time.Time) ([]Bar, error) {
	reader, err := l.open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return parseBars(reader, start, end)
}

func (l *CSVLoader) open(ctx context.Context, source string) (io.ReadCloser, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		l.log.InfoContext(ctx, "Downloading market data", logger.StringField("url", source))
		resp, err := l.client.Get(ctx, source, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to download data file %s: %w", source, err)
		}
		if resp.StatusCode != 200 {
			return nil, fmt.Errorf("failed to download data file %s: status %d", source, resp.StatusCode)
		}
		return io.NopCloser(bytes.NewReader(resp.Body)), nil
	}

	resolved := l.resolvePath(source)
	file, err := os.Open(resolved)
	if err != nil {
		return nil, fmt.Errorf("data file not found: %s", resolved)
	}
	return file, nil
}

// resolvePath mirrors the lookup order of the submission API: empty source
// falls back to the configured default file, relative paths are first tried
// inside the data directory.
func (l *CSVLoader) resolvePath(source string) string {
	if source == "" {
		source = l.defaultFile
	}
	if filepath.IsAbs(source) {
		return source
	}
	inDataDir := filepath.Join(l.dataDir, source)
	if _, err := os.Stat(inDataDir); err == nil {
		return inDataDir
	}
	return source
}

func parseBars(r io.Reader, start, end *time.Time) ([]Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var bars []Bar
	line := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		line++

		bar, err := parseBar(record)
		if err != nil {
			// Header rows are allowed only as the first line.
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("bad csv row %d: %w", line, err)
		}

		if start != nil && bar.Time.Before(*start) {
			continue
		}
		// End bound is date-only and inclusive of that whole day.
		if end != nil && !bar.Time.Before(end.AddDate(0, 0, 1)) {
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBar(record []string) (Bar, error) {
	if len(record) < 6 {
		return Bar{}, fmt.Errorf("expected at least 6 columns, got %d", len(record))
	}

	// Files either carry a combined timestamp column or separate date and
	// time columns (compact YYYYMMDD date followed by HH:MM:SS).
	var (
		ts     time.Time
		err    error
		fields []string
	)
	if len(record) >= 7 && strings.Contains(record[1], ":") {
		ts, err = time.Parse("20060102 15:04:05", record[0]+" "+record[1])
		fields = record[2:]
	} else {
		ts, err = parseBarTime(record[0])
		fields = record[1:]
	}
	if err != nil {
		return Bar{}, fmt.Errorf("bad timestamp %q", record[0])
	}

	if len(fields) < 4 {
		return Bar{}, fmt.Errorf("missing price columns")
	}

	values := make([]float64, 0, 5)
	for _, f := range fields[:min(5, len(fields))] {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Bar{}, fmt.Errorf("bad numeric value %q", f)
		}
		values = append(values, v)
	}

	bar := Bar{
		Time:  ts,
		Open:  values[0],
		High:  values[1],
		Low:   values[2],
		Close: values[3],
	}
	if len(values) > 4 {
		bar.Volume = values[4]
	}
	return bar, nil
}

var barTimeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
	"20060102",
}

func parseBarTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range barTimeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format %q", value)
}
