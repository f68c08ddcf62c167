// cmd/agendactl/reservations.go
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/maitredhq/maitred/internal/agenda"
	"github.com/maitredhq/maitred/internal/client"
	"github.com/maitredhq/maitred/internal/models"
)

func moveCmd() *cobra.Command {
	var (
		fromDate string
		toDate   string
		toTime   string
		tableID  int64
		roomID   int64
	)
	cmd := &cobra.Command{
		Use:   "move <reservation-id>",
		Short: "Reassign a reservation to a new date, time and table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid reservation id %q", args[0])
			}

			c := newClient()
			origin, err := findReservation(cmd.Context(), c, fromDate, id)
			if err != nil {
				return err
			}
			if toDate == "" {
				toDate = origin.Date
			}

			engine := agenda.NewEngine(c, func(context.Context) error { return nil })
			if err := engine.Begin(origin); err != nil {
				return err
			}
			result, err := engine.Drop(cmd.Context(), agenda.Target{
				Date:    toDate,
				Time:    toTime,
				TableID: optionalID(tableID),
				RoomID:  optionalID(roomID),
			})
			if err != nil {
				return err
			}
			if result == agenda.DropNoop {
				fmt.Println("Nothing to do: reservation is already there.")
				return nil
			}
			fmt.Printf("Moved reservation %d to %s %s\n", id, toDate, toTime)
			return nil
		},
	}
	cmd.Flags().StringVar(&fromDate, "from-date", "", "current date of the reservation (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toDate, "date", "", "target date, defaults to the current one")
	cmd.Flags().StringVar(&toTime, "time", "", "target time (HH:MM)")
	cmd.Flags().Int64Var(&tableID, "table", 0, "target table id, 0 for unassigned")
	cmd.Flags().Int64Var(&roomID, "room", 0, "target room id, 0 to leave unset")
	_ = cmd.MarkFlagRequired("from-date")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}

// findReservation locates a reservation on its current day's agenda; the
// drag engine needs the origin to detect no-op drops.
func findReservation(ctx context.Context, c *client.Client, date string, id int64) (models.Reservation, error) {
	resp, err := c.Agenda(ctx, date, client.RangeDay)
	if err != nil {
		return models.Reservation{}, err
	}
	for _, day := range resp.Days {
		for _, r := range day.Reservations {
			if r.ID == id {
				return r, nil
			}
		}
	}
	return models.Reservation{}, fmt.Errorf("reservation %d not found on %s", id, date)
}

func createCmd() *cobra.Command {
	var (
		qc      agenda.QuickCreate
		tableID int64
		roomID  int64
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Quick-create a reservation on a cell",
		RunE: func(cmd *cobra.Command, args []string) error {
			qc.Cell.TableID = optionalID(tableID)
			qc.Cell.RoomID = optionalID(roomID)

			c := newClient()
			engine := agenda.NewEngine(c, func(context.Context) error { return nil })
			created, err := engine.Create(cmd.Context(), c, qc)
			if err != nil {
				return err
			}
			fmt.Printf("Created reservation %d (ref %s) for %s, party of %d\n",
				created.ID, created.Ref, created.Customer.Name(), created.Party)
			return nil
		},
	}
	cmd.Flags().StringVar(&qc.Cell.Date, "date", "", "date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&qc.Cell.Time, "time", "", "time (HH:MM)")
	cmd.Flags().IntVar(&qc.Party, "party", 0, "party size")
	cmd.Flags().StringVar(&qc.Meal, "meal", "", "meal key")
	cmd.Flags().StringVar(&qc.FirstName, "first-name", "", "guest first name")
	cmd.Flags().StringVar(&qc.LastName, "last-name", "", "guest last name")
	cmd.Flags().StringVar(&qc.Phone, "phone", "", "guest phone number")
	cmd.Flags().Int64Var(&tableID, "table", 0, "table id, 0 for unassigned")
	cmd.Flags().Int64Var(&roomID, "room", 0, "room id, 0 to leave unset")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("time")
	_ = cmd.MarkFlagRequired("party")
	_ = cmd.MarkFlagRequired("first-name")
	return cmd
}

func suggestCmd() *cobra.Command {
	var (
		party  int
		roomID int64
	)
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest the best table combination for a party",
		RunE: func(cmd *cobra.Command, args []string) error {
			best, err := newClient().SuggestTables(cmd.Context(), optionalID(roomID), party)
			if err != nil {
				return err
			}
			if best == nil {
				fmt.Println("No table combination fits that party.")
				return nil
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Tables", "Seats"})
			tw.AppendRow(table.Row{fmt.Sprint(best.TableIDs), best.Capacity.Std})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&party, "party", 0, "party size")
	cmd.Flags().Int64Var(&roomID, "room", 0, "room id, 0 for any")
	_ = cmd.MarkFlagRequired("party")
	return cmd
}

func optionalID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}
