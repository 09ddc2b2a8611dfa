// Package clock supplies the datetime context injected into every model
// prompt. Campus queries like "is the cafeteria open now" or "what buses
// leave after 5pm" only make sense relative to a wall clock, so each
// request captures a snapshot in the campus timezone.
package clock

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTimezone is the campus timezone used when none is configured.
const DefaultTimezone = "Asia/Colombo"

// Clock produces datetime snapshots in a fixed location.
// The zero value is not usable; construct with New.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New creates a Clock for the named IANA timezone. An unknown name falls
// back to the campus default, then to UTC, so a snapshot is always
// available.
func New(timezone string) *Clock {
	if timezone == "" {
		timezone = DefaultTimezone
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc, err = time.LoadLocation(DefaultTimezone)
		if err != nil {
			loc = time.UTC
		}
	}

	return &Clock{loc: loc, now: time.Now}
}

// NewFixed creates a Clock frozen at the given instant. Test helper.
func NewFixed(t time.Time) *Clock {
	return &Clock{loc: t.Location(), now: func() time.Time { return t }}
}

// Location returns the clock's resolved location.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Snapshot is a point-in-time capture of the campus clock, carrying the
// fields the model and tools need to answer time-relative questions.
// When the zone is not UTC, UTC holds the same instant mirrored into UTC
// so the model can anchor absolute times.
type Snapshot struct {
	Timestamp  time.Time `json:"timestamp"`
	Date       string    `json:"date"`     // 2006-01-02
	Time       string    `json:"time"`     // 15:04:05
	Time12     string    `json:"time_12h"` // 03:04:05 PM
	DayOfWeek  string    `json:"day_of_week"`
	Month      string    `json:"month"`
	Year       int       `json:"year"`
	WeekNumber int       `json:"week_number"` // ISO 8601 week
	DayOfYear  int       `json:"day_of_year"`
	Timezone   string    `json:"timezone"`
	Readable   string    `json:"formatted_readable"` // Monday, January 02, 2006 at 03:04 PM
	Short      string    `json:"formatted_short"`    // 01/02/2006
	Unix       int64     `json:"unix_timestamp"`
	IsWeekend  bool      `json:"is_weekend"`
	UTC        *Snapshot `json:"utc,omitempty"`
}

// Snapshot captures the current moment in the clock's location.
func (c *Clock) Snapshot() Snapshot {
	now := c.now().In(c.loc)
	snap := snapshotAt(now, c.loc)

	if c.loc != time.UTC && c.loc.String() != "UTC" {
		mirror := snapshotAt(now.UTC(), time.UTC)
		snap.UTC = &mirror
	}
	return snap
}

func snapshotAt(t time.Time, loc *time.Location) Snapshot {
	wd := t.Weekday()
	_, week := t.ISOWeek()

	return Snapshot{
		Timestamp:  t,
		Date:       t.Format("2006-01-02"),
		Time:       t.Format("15:04:05"),
		Time12:     t.Format("03:04:05 PM"),
		DayOfWeek:  wd.String(),
		Month:      t.Month().String(),
		Year:       t.Year(),
		WeekNumber: week,
		DayOfYear:  t.YearDay(),
		Timezone:   loc.String(),
		Readable:   t.Format("Monday, January 02, 2006 at 03:04 PM"),
		Short:      t.Format("01/02/2006"),
		Unix:       t.Unix(),
		IsWeekend:  wd == time.Saturday || wd == time.Sunday,
	}
}

// DayType names the snapshot's day as Weekend or Weekday.
func (s Snapshot) DayType() string {
	if s.IsWeekend {
		return "Weekend"
	}
	return "Weekday"
}

// PromptBlock renders the snapshot as the context block prepended to each
// enhanced prompt. The model treats this as ground truth for "now".
func (s Snapshot) PromptBlock() string {
	var b strings.Builder
	b.WriteString("**Current DateTime Context:**\n")
	fmt.Fprintf(&b, "- Date: %s (%s, %s)\n", s.Date, s.DayOfWeek, s.DayType())
	fmt.Fprintf(&b, "- Time: %s / %s (%s)\n", s.Time, s.Time12, s.Timezone)
	fmt.Fprintf(&b, "- Week %d, day %d of %d\n", s.WeekNumber, s.DayOfYear, s.Year)
	fmt.Fprintf(&b, "- Readable: %s (%s)", s.Readable, s.Short)
	if s.UTC != nil {
		fmt.Fprintf(&b, "\n- UTC: %s %s", s.UTC.Date, s.UTC.Time)
	}
	return b.String()
}
