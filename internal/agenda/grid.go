// Package agenda builds the staff-facing agenda: a time-by-table grid for a
// single day, a day-list for a week, and the drag gesture engine that
// reassigns reservations across them.
package agenda

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/maitredhq/maitred/internal/models"
	"github.com/maitredhq/maitred/internal/schedule"
)

// RoomFilter is "all" or a room ID rendered as a string.
type RoomFilter string

const RoomAll RoomFilter = "all"

func (f RoomFilter) roomID() (int64, bool) {
	if f == "" || f == RoomAll {
		return 0, false
	}
	id, err := strconv.ParseInt(string(f), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Includes applies the room rule: a reservation passes when its own room
// matches, or, lacking one, when its resolved table's room matches. A
// reservation with no resolvable room passes every filter.
func (f RoomFilter) Includes(r models.Reservation, tableRooms map[int64]int64) bool {
	want, filtered := f.roomID()
	if !filtered {
		return true
	}
	if r.RoomID != nil {
		return *r.RoomID == want
	}
	if r.TableID != nil {
		if roomID, ok := tableRooms[*r.TableID]; ok {
			return roomID == want
		}
	}
	return true
}

// ColumnKind distinguishes table columns from the synthetic unassigned one.
type ColumnKind int

const (
	ColumnTable ColumnKind = iota
	ColumnUnassigned
)

// Column is one vertical lane of the day grid.
type Column struct {
	Kind    ColumnKind
	TableID *int64
	RoomID  *int64
	Label   string
	Active  bool
}

// Cell holds the reservations starting at one (slot, column) intersection.
type Cell struct {
	Reservations []models.Reservation
}

// DayGrid is the day view: a slot-time axis crossed with table columns.
// Cells is indexed [timeIndex][columnIndex].
type DayGrid struct {
	Date    string
	Columns []Column
	Times   []schedule.MinuteOfDay
	Cells   [][]Cell
}

const (
	axisStep           = 30
	axisMinSpanMinutes = 120
	defaultAxisStart   = 18 * 60
	defaultAxisEnd     = 22 * 60
)

// BuildDayGrid assembles the day view from the day's reservations and the
// restaurant's table layout, filtered by room. A synthetic unassigned column
// is appended whenever a reservation lacks a table or no table columns
// survive the filter.
func BuildDayGrid(date string, tables []models.Table, reservations []models.Reservation, room RoomFilter) DayGrid {
	tableRooms := make(map[int64]int64, len(tables))
	for _, table := range tables {
		tableRooms[table.ID] = table.RoomID
	}

	var visible []models.Reservation
	for _, r := range reservations {
		if r.Date == date && room.Includes(r, tableRooms) {
			visible = append(visible, r)
		}
	}

	columns := buildColumns(tables, visible, room)
	times := buildAxis(visible)

	cells := make([][]Cell, len(times))
	for ti, slot := range times {
		row := make([]Cell, len(columns))
		for ci, column := range columns {
			for _, r := range visible {
				minute, err := r.Minute()
				if err != nil || minute != slot {
					continue
				}
				if column.Kind == ColumnUnassigned {
					if r.TableID == nil {
						row[ci].Reservations = append(row[ci].Reservations, r)
					}
					continue
				}
				if r.TableID != nil && *r.TableID == *column.TableID {
					row[ci].Reservations = append(row[ci].Reservations, r)
				}
			}
		}
		cells[ti] = row
	}

	return DayGrid{Date: date, Columns: columns, Times: times, Cells: cells}
}

func buildColumns(tables []models.Table, visible []models.Reservation, room RoomFilter) []Column {
	wantRoom, filtered := room.roomID()

	var columns []Column
	for _, table := range tables {
		if !table.Active {
			continue
		}
		if filtered && table.RoomID != wantRoom {
			continue
		}
		table := table
		columns = append(columns, Column{
			Kind:    ColumnTable,
			TableID: &table.ID,
			RoomID:  &table.RoomID,
			Label:   table.Label,
			Active:  true,
		})
	}

	needUnassigned := len(columns) == 0
	for _, r := range visible {
		if r.TableID == nil {
			needUnassigned = true
			break
		}
	}
	if needUnassigned {
		columns = append(columns, Column{Kind: ColumnUnassigned, Label: "Unassigned", Active: true})
	}
	return columns
}

// buildAxis derives the 30-minute slot axis from the day's reservations,
// defaulting to the evening service when the day is empty.
func buildAxis(visible []models.Reservation) []schedule.MinuteOfDay {
	first, last := -1, -1
	for _, r := range visible {
		minute, err := r.Minute()
		if err != nil {
			continue
		}
		m := int(minute)
		if first == -1 || m < first {
			first = m
		}
		if last == -1 || m > last {
			last = m
		}
	}

	start, end := defaultAxisStart, defaultAxisEnd
	if first >= 0 {
		start = (first / axisStep) * axisStep
		end = ((last + axisStep - 1) / axisStep) * axisStep
		if end-start < axisMinSpanMinutes {
			end = start + axisMinSpanMinutes
		}
	}

	var times []schedule.MinuteOfDay
	for m := start; m <= end; m += axisStep {
		times = append(times, schedule.MinuteOfDay(m))
	}
	return times
}

// WeekDay is one calendar day in the week view. Empty days are rendered
// explicitly rather than omitted.
type WeekDay struct {
	Date         string
	Weekday      time.Weekday
	Reservations []models.Reservation
	Empty        bool
}

// WeekGrid is the week view: 7 fixed calendar days starting Monday,
// independent of the table axis.
type WeekGrid struct {
	Start string
	Days  [7]WeekDay
}

// BuildWeekGrid groups reservations into the Monday-start week containing
// the anchor date, applying the same room rule as the day view.
func BuildWeekGrid(anchorDate string, tables []models.Table, reservations []models.Reservation, room RoomFilter) (WeekGrid, error) {
	anchor, err := time.Parse(models.DateLayout, anchorDate)
	if err != nil {
		return WeekGrid{}, fmt.Errorf("invalid anchor date %q: %w", anchorDate, err)
	}

	offset := (int(anchor.Weekday()) + 6) % 7 // days since Monday
	weekStart := anchor.AddDate(0, 0, -offset)

	tableRooms := make(map[int64]int64, len(tables))
	for _, table := range tables {
		tableRooms[table.ID] = table.RoomID
	}

	byDate := make(map[string][]models.Reservation)
	for _, r := range reservations {
		if !room.Includes(r, tableRooms) {
			continue
		}
		byDate[r.Date] = append(byDate[r.Date], r)
	}

	grid := WeekGrid{Start: weekStart.Format(models.DateLayout)}
	for i := 0; i < 7; i++ {
		day := weekStart.AddDate(0, 0, i)
		date := day.Format(models.DateLayout)
		dayReservations := byDate[date]
		sort.SliceStable(dayReservations, func(a, b int) bool {
			if dayReservations[a].Time != dayReservations[b].Time {
				return dayReservations[a].Time < dayReservations[b].Time
			}
			return dayReservations[a].ID < dayReservations[b].ID
		})
		grid.Days[i] = WeekDay{
			Date:         date,
			Weekday:      day.Weekday(),
			Reservations: dayReservations,
			Empty:        len(dayReservations) == 0,
		}
	}
	return grid, nil
}
