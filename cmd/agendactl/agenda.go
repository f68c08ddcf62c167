// cmd/agendactl/agenda.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/maitredhq/maitred/internal/agenda"
	"github.com/maitredhq/maitred/internal/client"
	"github.com/maitredhq/maitred/internal/models"
)

func agendaCmd() *cobra.Command {
	var (
		date string
		rng  string
		room string
	)
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Render the agenda grid for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().Agenda(cmd.Context(), date, client.AgendaRange(rng))
			if err != nil {
				return err
			}

			filter := agenda.RoomFilter(room)
			if rng == string(client.RangeWeek) {
				grid, err := agenda.BuildWeekGrid(date, resp.Tables, flatten(resp), filter)
				if err != nil {
					return err
				}
				renderWeek(grid)
				return nil
			}
			renderDay(agenda.BuildDayGrid(date, resp.Tables, flatten(resp), filter))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&rng, "range", "day", "day or week")
	cmd.Flags().StringVar(&room, "room", string(agenda.RoomAll), "room id, or all")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func flatten(resp *client.AgendaResponse) []models.Reservation {
	var all []models.Reservation
	for _, day := range resp.Days {
		all = append(all, day.Reservations...)
	}
	all = append(all, resp.Reservations...)
	return all
}

func renderDay(grid agenda.DayGrid) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle("Agenda %s", grid.Date)

	header := table.Row{"Time"}
	for _, column := range grid.Columns {
		header = append(header, column.Label)
	}
	tw.AppendHeader(header)

	for ti, slot := range grid.Times {
		row := table.Row{slot.Clock()}
		for ci := range grid.Columns {
			row = append(row, cellText(grid.Cells[ti][ci]))
		}
		tw.AppendRow(row)
	}
	tw.Render()
}

func cellText(cell agenda.Cell) string {
	var parts []string
	for _, r := range cell.Reservations {
		parts = append(parts, fmt.Sprintf("%s (%d)", r.Customer.Name(), r.Party))
	}
	return strings.Join(parts, ", ")
}

func renderWeek(grid agenda.WeekGrid) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle("Week of %s", grid.Start)
	tw.AppendHeader(table.Row{"Day", "Date", "Reservations"})

	for _, day := range grid.Days {
		text := "-"
		if !day.Empty {
			var parts []string
			for _, r := range day.Reservations {
				parts = append(parts, fmt.Sprintf("%s %s (%d)", r.Time, r.Customer.Name(), r.Party))
			}
			text = strings.Join(parts, "\n")
		}
		tw.AppendRow(table.Row{day.Weekday.String(), day.Date, text})
	}
	tw.Render()
}
