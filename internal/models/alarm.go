package models

import (
	"fmt"
	"sort"
	"time"
)

// Weekday enumerates alarm recurrence days. Values follow time.Weekday
// (Sunday = 0) so the two convert directly.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var weekdayNames = [...]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

func (d Weekday) Valid() bool {
	return d >= Sunday && d <= Saturday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// NormalizeDays deduplicates and sorts a recurrence set. Storage order is
// irrelevant but a canonical form keeps comparisons and display stable.
// Invalid values are dropped.
func NormalizeDays(days []Weekday) []Weekday {
	seen := make(map[Weekday]struct{}, len(days))
	out := make([]Weekday, 0, len(days))
	for _, d := range days {
		if !d.Valid() {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MinutesPerDay bounds the normalized alarm time.
const MinutesPerDay = 24 * 60

// Alarm stores its time as whole minutes since midnight; Display is derived,
// never parsed back. ImagePath is set when the alarm carries a photo
// attachment.
type Alarm struct {
	ID        string
	UserID    string
	Minutes   int
	Label     string
	Days      []Weekday
	Enabled   bool
	ImagePath string
	ImageURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Display renders the alarm time as a 24h "HH:MM" string.
func (a Alarm) Display() string {
	return FormatMinutes(a.Minutes)
}

func FormatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ValidMinutes reports whether m is a representable time of day.
func ValidMinutes(m int) bool {
	return m >= 0 && m < MinutesPerDay
}
