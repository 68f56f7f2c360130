package sim

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Driver is one driver of a car, accumulated over the session.
type Driver struct {
	FirstName           string
	LastName            string
	FullName            string
	ShortName           string
	InitialPlusLastName string
	Initials            string
	Category            string
	Nationality         string

	TotalLaps int
	BestLap   *LapBasic

	totalDrivingTime time.Duration
}

// NewDriver creates a driver from raw info, deriving the missing name forms.
func NewDriver(info DriverInfo) *Driver {
	d := &Driver{
		FirstName:   info.FirstName,
		LastName:    info.LastName,
		FullName:    info.FullName,
		ShortName:   info.ShortName,
		Category:    info.Category,
		Nationality: info.Nationality,
	}
	d.FullName = driverFullName(info)
	if d.Category == "" {
		d.Category = "Platinum"
	}
	if d.Nationality == "" {
		d.Nationality = "Unknown"
	}
	d.InitialPlusLastName = initialPlusLastName(d.FirstName, d.LastName, d.FullName)
	d.Initials = initials(d.FirstName, d.LastName)
	return d
}

func driverFullName(info DriverInfo) string {
	if info.FullName != "" {
		return info.FullName
	}
	return strings.TrimSpace(info.FirstName + " " + info.LastName)
}

func initialPlusLastName(first, last, full string) string {
	if first == "" && last == "" {
		return full
	}
	if first == "" {
		return last
	}
	return firstRune(first) + ". " + last
}

func initials(first, last string) string {
	var sb strings.Builder
	if first != "" {
		sb.WriteString(firstRune(first))
	}
	if last != "" {
		sb.WriteString(firstRune(last))
	}
	return sb.String()
}

func firstRune(s string) string {
	r, _ := utf8.DecodeRuneInString(s)
	return string(r)
}

// TotalDrivingTime returns the driver's accumulated driving time. If the driver is
// currently driving, the running stint is included.
func (d *Driver) TotalDrivingTime(isDriving bool, currentStint *time.Duration) time.Duration {
	if isDriving && currentStint != nil {
		return d.totalDrivingTime + *currentStint
	}
	return d.totalDrivingTime
}

func (d *Driver) onStintEnd(stint time.Duration) {
	d.totalDrivingTime += stint
}
