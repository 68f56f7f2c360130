package track

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LapFileExt is the extension of reference lap files. Files are named
// "<trackID>_<class>.txt" and contain one "pos;seconds[;speed]" row per sample.
const LapFileExt = ".txt"

// ReadLapSamples parses reference lap rows from r. Empty lines are ignored; any
// columns after the elapsed time (e.g. speed) are ignored.
func ReadLapSamples(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	samples := make([]Sample, 0, 200)
	for line := 1; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading lap row %d: %w", line, err)
		}
		if len(row) < 2 {
			return nil, fmt.Errorf("lap row %d: expected at least 2 columns, got %d", line, len(row))
		}
		pos, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("lap row %d: parsing position: %w", line, err)
		}
		secs, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("lap row %d: parsing time: %w", line, err)
		}
		samples = append(samples, Sample{Pos: pos, Time: time.Duration(secs * float64(time.Second))})
	}
	return samples, nil
}

// WriteLapSamples writes samples in the lap file format.
func WriteLapSamples(w io.Writer, samples []Sample) error {
	writer := csv.NewWriter(w)
	writer.Comma = ';'
	for i, s := range samples {
		row := []string{
			strconv.FormatFloat(s.Pos, 'f', -1, 64),
			strconv.FormatFloat(s.Time.Seconds(), 'f', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing lap row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// LoadLapDir reads every "<trackID>_<class>.txt" file in dir and returns the raw
// samples keyed by class. A missing directory yields an empty map.
func LoadLapDir(dir, trackID string) (map[string][]Sample, error) {
	laps := make(map[string][]Sample)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return laps, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading lap directory: %w", err)
	}

	prefix := trackID + "_"
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, LapFileExt) || !strings.HasPrefix(name, prefix) {
			continue
		}
		class := strings.TrimSuffix(strings.TrimPrefix(name, prefix), LapFileExt)
		samples, err := readLapFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		laps[class] = samples
	}
	return laps, nil
}

func readLapFile(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening lap file: %w", err)
	}
	defer func() { _ = f.Close() }()

	samples, err := ReadLapSamples(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}
