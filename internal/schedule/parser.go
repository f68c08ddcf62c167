// Package schedule parses declarative per-day service schedules into
// structured opening windows.
package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MinuteOfDay is a time of day expressed as minutes since midnight.
type MinuteOfDay int

const (
	minMinute MinuteOfDay = 0
	maxMinute MinuteOfDay = 23*60 + 59
)

// Clock renders the value as HH:MM.
func (m MinuteOfDay) Clock() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// ParseClock parses an HH:MM value, clamping the result to [00:00, 23:59].
func ParseClock(raw string) (MinuteOfDay, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("time %q must be in HH:MM format", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("time %q must be in HH:MM format", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("time %q must be in HH:MM format", raw)
	}
	if hours < 0 {
		return 0, fmt.Errorf("time %q must be in HH:MM format", raw)
	}
	value := MinuteOfDay(hours*60 + minutes)
	if value > maxMinute {
		value = maxMinute
	}
	if value < minMinute {
		value = minMinute
	}
	return value, nil
}

// Window is a single contiguous service window on one day of the week.
type Window struct {
	Day   time.Weekday
	Start MinuteOfDay
	End   MinuteOfDay
}

// ParseError describes a schedule segment that could not be parsed. Parsing
// is tolerant: malformed segments are collected and skipped, never fatal.
type ParseError struct {
	Line    int
	Segment string
	Reason  string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("schedule line %d: %s: %s", e.Line, e.Segment, e.Reason)
}

// Definition is the parsed form of a schedule text.
type Definition struct {
	Windows map[time.Weekday][]Window
	Skipped []ParseError
}

// WindowsFor returns the windows for one weekday, sorted by start time.
func (d Definition) WindowsFor(day time.Weekday) []Window {
	return d.Windows[day]
}

var dayKeys = map[string]time.Weekday{
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
	"sun": time.Sunday,
}

const closedMarker = "closed"

// Parse parses a multi-line schedule definition. Each line has the form
// "day=HH:MM-HH:MM[|HH:MM-HH:MM...]" with a three-letter lowercase day key.
// Lines without "=" and days marked closed are ignored. Malformed ranges are
// skipped and reported through Definition.Skipped.
func Parse(text string) Definition {
	def := Definition{Windows: make(map[time.Weekday][]Window)}

	for i, line := range strings.Split(text, "\n") {
		lineNo := i + 1
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, "=") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		dayKey := strings.TrimSpace(strings.ToLower(parts[0]))
		day, ok := dayKeys[dayKey]
		if !ok {
			def.Skipped = append(def.Skipped, ParseError{
				Line:    lineNo,
				Segment: line,
				Reason:  fmt.Sprintf("unknown day key %q", dayKey),
			})
			continue
		}

		value := strings.TrimSpace(parts[1])
		if value == "" || strings.EqualFold(value, closedMarker) {
			continue
		}

		for _, rangeText := range strings.Split(value, "|") {
			window, err := parseRange(day, rangeText)
			if err != nil {
				def.Skipped = append(def.Skipped, ParseError{
					Line:    lineNo,
					Segment: strings.TrimSpace(rangeText),
					Reason:  err.Error(),
				})
				continue
			}
			if overlaps(def.Windows[day], window) {
				def.Skipped = append(def.Skipped, ParseError{
					Line:    lineNo,
					Segment: strings.TrimSpace(rangeText),
					Reason:  "overlaps an earlier window on the same day",
				})
				continue
			}
			def.Windows[day] = append(def.Windows[day], window)
		}
	}

	for day := range def.Windows {
		windows := def.Windows[day]
		sort.Slice(windows, func(a, b int) bool { return windows[a].Start < windows[b].Start })
	}
	return def
}

func parseRange(day time.Weekday, raw string) (Window, error) {
	raw = strings.TrimSpace(raw)
	bounds := strings.SplitN(raw, "-", 2)
	if len(bounds) != 2 {
		return Window{}, fmt.Errorf("range %q must be in HH:MM-HH:MM format", raw)
	}
	start, err := ParseClock(bounds[0])
	if err != nil {
		return Window{}, err
	}
	end, err := ParseClock(bounds[1])
	if err != nil {
		return Window{}, err
	}
	if end <= start {
		return Window{}, fmt.Errorf("range %q ends before it starts", raw)
	}
	return Window{Day: day, Start: start, End: end}, nil
}

// Adjacent windows are allowed; only true overlap is rejected.
func overlaps(existing []Window, candidate Window) bool {
	for _, w := range existing {
		if candidate.Start < w.End && w.Start < candidate.End {
			return true
		}
	}
	return false
}
