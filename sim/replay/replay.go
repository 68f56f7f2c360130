// Package replay reads and writes recorded telemetry: a YAML header describing the
// recording and the track, plus a CSV file with one row per car per frame.
package replay

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dynleaderboards/dynleaderboards/sim"
)

// Version is the replay format version written by Export.
const Version = 1

// Header captures metadata for a replay.
type Header struct {
	Version   int         `yaml:"replay_version"`
	TimeUnit  string      `yaml:"time_unit"` // always "us"
	CreatedAt string      `yaml:"created_at,omitempty"`
	Game      string      `yaml:"game,omitempty"`
	Track     TrackHeader `yaml:"track"`
}

// TrackHeader describes the recorded track.
type TrackHeader struct {
	ID              string  `yaml:"id"`
	Name            string  `yaml:"name,omitempty"`
	LengthMeters    float64 `yaml:"length_m"`
	SplinePosOffset float64 `yaml:"spline_pos_offset,omitempty"`
}

// Descriptor returns the track descriptor attached to every frame.
func (t TrackHeader) Descriptor() sim.TrackDescriptor {
	return sim.TrackDescriptor{
		ID:              t.ID,
		Name:            t.Name,
		LengthMeters:    t.LengthMeters,
		SplinePosOffset: t.SplinePosOffset,
	}
}

// Validate checks the header fields the reader depends on.
func (h *Header) Validate() error {
	if h.Version != Version {
		return fmt.Errorf("unsupported replay_version %d, expected %d", h.Version, Version)
	}
	if h.TimeUnit != "us" {
		return fmt.Errorf("unsupported time_unit %q, expected \"us\"", h.TimeUnit)
	}
	if h.Track.ID == "" {
		return fmt.Errorf("track.id must be set")
	}
	if h.Track.LengthMeters <= 0 {
		return fmt.Errorf("track.length_m must be positive, got %g", h.Track.LengthMeters)
	}
	return nil
}

// Replay combines a header and its frames.
type Replay struct {
	Header Header
	Frames []sim.Frame
}

// columns of the replay CSV. Rows of one frame are consecutive and share frame_time_us.
// A row with an empty car_id stands for a frame without cars.
var columns = []string{
	"frame_time_us", "session_type", "session_phase", "remaining_laps", "time_left_us",
	"car_id", "car_name", "car_class", "cup_category", "car_number", "team_name",
	"connected", "has_coordinates", "player", "position", "position_in_class",
	"current_lap", "track_position", "current_lap_time_us", "last_lap_time_us",
	"last_s1_us", "last_s2_us", "last_s3_us", "best_s1_us", "best_s2_us", "best_s3_us",
	"lap_valid", "in_pit", "in_pit_lane", "pit_count", "speed_kmh",
	"driver_first_name", "driver_last_name", "driver_short_name", "driver_category", "driver_nationality",
}

// Export writes the header (YAML) and frames (CSV) to separate files.
func Export(r *Replay, headerPath, dataPath string) error {
	headerData, err := yaml.Marshal(&r.Header)
	if err != nil {
		return fmt.Errorf("marshaling replay header: %w", err)
	}
	if err := os.WriteFile(headerPath, headerData, 0644); err != nil {
		return fmt.Errorf("writing replay header: %w", err)
	}

	file, err := os.Create(dataPath)
	if err != nil {
		return fmt.Errorf("creating replay data file: %w", err)
	}
	defer func() { _ = file.Close() }()
	return WriteFrames(file, r.Frames)
}

// WriteFrames writes frames as replay CSV rows.
func WriteFrames(w io.Writer, frames []sim.Frame) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for i, f := range frames {
		prefix := []string{
			us(f.Time),
			string(f.Session.Type),
			f.Session.Phase.String(),
			strconv.Itoa(f.Session.RemainingLaps),
			us(f.Session.TimeLeft),
		}
		if len(f.Cars) == 0 {
			row := append(prefix, make([]string, len(columns)-len(prefix))...)
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("writing frame %d: %w", i, err)
			}
			continue
		}
		for _, c := range f.Cars {
			row := append(append([]string(nil), prefix...), carColumns(c)...)
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("writing frame %d car %s: %w", i, c.ID, err)
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

func carColumns(c sim.CarSnapshot) []string {
	return []string{
		c.ID, c.CarName, c.CarClass, c.CupCategory, c.CarNumber, c.TeamName,
		strconv.FormatBool(c.IsConnected),
		strconv.FormatBool(c.HasCoordinates),
		strconv.FormatBool(c.IsPlayer),
		strconv.Itoa(c.Position),
		strconv.Itoa(c.PositionInClass),
		optionalInt(c.CurrentLap),
		optionalFloat(c.TrackPositionPercent),
		us(c.CurrentLapTime),
		us(c.LastLapTime),
		us(c.LastLapSectors[0]), us(c.LastLapSectors[1]), us(c.LastLapSectors[2]),
		us(c.BestSectors[0]), us(c.BestSectors[1]), us(c.BestSectors[2]),
		strconv.FormatBool(c.LapValid),
		strconv.FormatBool(c.IsCarInPit),
		strconv.FormatBool(c.IsCarInPitLane),
		strconv.Itoa(c.PitCount),
		strconv.FormatFloat(c.Speed, 'f', -1, 64),
		c.Driver.FirstName, c.Driver.LastName, c.Driver.ShortName, c.Driver.Category, c.Driver.Nationality,
	}
}

// Load reads a replay header (YAML) and its frames (CSV).
func Load(headerPath, dataPath string) (*Replay, error) {
	headerData, err := os.ReadFile(headerPath)
	if err != nil {
		return nil, fmt.Errorf("reading replay header: %w", err)
	}
	var header Header
	decoder := yaml.NewDecoder(bytes.NewReader(headerData))
	decoder.KnownFields(true)
	if err := decoder.Decode(&header); err != nil {
		return nil, fmt.Errorf("parsing replay header: %w", err)
	}
	if err := header.Validate(); err != nil {
		return nil, fmt.Errorf("invalid replay header: %w", err)
	}

	file, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("opening replay data: %w", err)
	}
	defer func() { _ = file.Close() }()

	frames, err := ReadFrames(file, header.Track.Descriptor())
	if err != nil {
		return nil, err
	}
	return &Replay{Header: header, Frames: frames}, nil
}

// ReadFrames reads replay CSV rows, grouping consecutive rows with the same frame
// time into one frame. Every frame gets the track descriptor td.
func ReadFrames(r io.Reader, td sim.TrackDescriptor) ([]sim.Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(columns)

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	var frames []sim.Frame
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}

		p := &rowParser{row: row}
		at := p.durationAt(0)
		session := sim.SessionDescriptor{
			Type:          sim.ParseSessionType(row[1]),
			Phase:         sim.ParseSessionPhase(row[2]),
			RemainingLaps: p.intAt(3),
			TimeLeft:      p.durationAt(4),
		}
		if p.err != nil {
			return nil, fmt.Errorf("line %d: %w", line, p.err)
		}

		if len(frames) == 0 || frames[len(frames)-1].Time != at {
			frames = append(frames, sim.Frame{Time: at, Session: session, Track: td})
		}
		if row[5] == "" {
			continue
		}
		car := parseCar(p)
		if p.err != nil {
			return nil, fmt.Errorf("line %d: %w", line, p.err)
		}
		last := &frames[len(frames)-1]
		last.Cars = append(last.Cars, car)
	}
	return frames, nil
}

func parseCar(p *rowParser) sim.CarSnapshot {
	row := p.row
	return sim.CarSnapshot{
		ID:                   row[5],
		CarName:              row[6],
		CarClass:             row[7],
		CupCategory:          row[8],
		CarNumber:            row[9],
		TeamName:             row[10],
		IsConnected:          p.boolAt(11),
		HasCoordinates:       p.boolAt(12),
		IsPlayer:             p.boolAt(13),
		Position:             p.intAt(14),
		PositionInClass:      p.intAt(15),
		CurrentLap:           p.optionalIntAt(16),
		TrackPositionPercent: p.optionalFloatAt(17),
		CurrentLapTime:       p.durationAt(18),
		LastLapTime:          p.durationAt(19),
		LastLapSectors:       sim.SectorTimes{p.durationAt(20), p.durationAt(21), p.durationAt(22)},
		BestSectors:          sim.SectorTimes{p.durationAt(23), p.durationAt(24), p.durationAt(25)},
		LapValid:             p.boolAt(26),
		IsCarInPit:           p.boolAt(27),
		IsCarInPitLane:       p.boolAt(28),
		PitCount:             p.intAt(29),
		Speed:                p.floatAt(30),
		Driver: sim.DriverInfo{
			FirstName:   row[31],
			LastName:    row[32],
			ShortName:   row[33],
			Category:    row[34],
			Nationality: row[35],
		},
	}
}

// rowParser parses typed columns and keeps the first error.
type rowParser struct {
	row []string
	err error
}

func (p *rowParser) fail(i int, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("column %s: %w", columns[i], err)
	}
}

func (p *rowParser) intAt(i int) int {
	v, err := strconv.Atoi(p.row[i])
	if err != nil {
		p.fail(i, err)
	}
	return v
}

func (p *rowParser) floatAt(i int) float64 {
	v, err := strconv.ParseFloat(p.row[i], 64)
	if err != nil {
		p.fail(i, err)
	}
	return v
}

func (p *rowParser) boolAt(i int) bool {
	v, err := strconv.ParseBool(p.row[i])
	if err != nil {
		p.fail(i, err)
	}
	return v
}

func (p *rowParser) durationAt(i int) time.Duration {
	v, err := strconv.ParseInt(p.row[i], 10, 64)
	if err != nil {
		p.fail(i, err)
	}
	return time.Duration(v) * time.Microsecond
}

func (p *rowParser) optionalIntAt(i int) *int {
	if p.row[i] == "" {
		return nil
	}
	v := p.intAt(i)
	return &v
}

func (p *rowParser) optionalFloatAt(i int) *float64 {
	if p.row[i] == "" {
		return nil
	}
	v := p.floatAt(i)
	return &v
}

func us(d time.Duration) string {
	return strconv.FormatInt(d.Microseconds(), 10)
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
