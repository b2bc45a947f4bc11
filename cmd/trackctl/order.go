package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/BearBump/TrackDesk/internal/services/orders"
	"github.com/spf13/cobra"
)

func (c *cli) orderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Inspect orders",
	}
	cmd.AddCommand(c.orderShowCmd())
	return cmd
}

func (c *cli) orderShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <tracking-number|id>",
		Short: "Print an order with its tracking history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(func(st cliStore) error {
				svc := orders.New(st, nil, orders.Config{})
				o, err := svc.GetOrder(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				hist, err := svc.GetTrackingHistory(cmd.Context(), o.ID)
				if err != nil {
					return err
				}
				return printOrder(cmd, o, hist)
			})
		},
	}
}

func printOrder(cmd *cobra.Command, o *models.Order, hist []*models.TrackingEvent) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Tracking number:\t%s\n", o.TrackingNumber)
	fmt.Fprintf(w, "ID:\t%s\n", o.ID)
	fmt.Fprintf(w, "Status:\t%s (%s)\n", o.Status, o.Status.Class())
	fmt.Fprintf(w, "Product:\t%s, %.2f kg\n", o.ProductName, o.Weight)
	fmt.Fprintf(w, "Shipping:\t%s / %s\n", o.ShippingCompany, o.ShippingMethod)
	fmt.Fprintf(w, "Total:\t%.2f %s\n", o.TotalAmount, o.Currency)
	fmt.Fprintf(w, "Sender:\t%s, %s\n", o.Sender.Name, o.Sender.Address)
	fmt.Fprintf(w, "Recipient:\t%s, %s\n", o.Recipient.Name, o.Recipient.Address)
	fmt.Fprintf(w, "Created:\t%s\n", models.FormatDate(&o.CreatedAt))
	fmt.Fprintf(w, "Estimated delivery:\t%s\n", models.FormatDate(o.DeliveryDate))
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout())
	w = tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tSTATUS\tLOCATION\tDESCRIPTION")
	for _, e := range hist {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", models.FormatDateTime(&e.Timestamp), e.Status, deref(e.Location), deref(e.Description))
	}
	return w.Flush()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
