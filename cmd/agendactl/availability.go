// cmd/agendactl/availability.go
package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/maitredhq/maitred/internal/client"
)

func availabilityCmd() *cobra.Command {
	var (
		date  string
		party int
		meal  string
	)
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Check bookable slots for a date, party size and meal",
		RunE: func(cmd *cobra.Command, args []string) error {
			updates := make(chan client.Summary, 8)
			ccfg := controllerConfig()
			ccfg.MealRequired = meal != ""
			ccfg.OnUpdate = func(s client.Summary) { updates <- s }
			controller := client.NewController(newClient(), ccfg)
			defer controller.Close()

			controller.Schedule(client.Query{Date: date, Party: party, Meal: meal}, true)

			var summary client.Summary
			for summary = range updates {
				if summary.State != client.AvailabilityLoading {
					break
				}
			}

			switch summary.State {
			case client.AvailabilityError:
				return fmt.Errorf("%s", summary.Message)
			case client.AvailabilityUnavailable:
				fmt.Println("No service scheduled on", date)
				return nil
			case client.AvailabilityFull:
				fmt.Println("Fully booked on", date)
				return nil
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Start", "Label", "Status"})
			for _, slot := range summary.Slots {
				tw.AppendRow(table.Row{slot.Start, slot.Label, slot.Status})
			}
			tw.Render()
			if summary.State == client.AvailabilityLimited {
				fmt.Println("Availability is limited. Book soon.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&party, "party", 2, "party size")
	cmd.Flags().StringVar(&meal, "meal", "", "meal key (lunch, dinner, ...)")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
