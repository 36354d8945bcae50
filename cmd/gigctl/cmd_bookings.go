package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
)

var requirements string

var bookCmd = &cobra.Command{
	Use:   "book <gig-id>",
	Short: "Book a gig at its current price",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("bad gig id: %w", err)
		}
		b, err := newClient().CreateBooking(cmd.Context(), id, requirements)
		if err != nil {
			return explain(err)
		}
		fmt.Printf("booking %s is %s at %d\n", b.ID, b.Status, b.Price)
		return nil
	},
}

var (
	listAs     string
	listStatus string
	listPage   int
)

var bookingsCmd = &cobra.Command{
	Use:   "bookings",
	Short: "List and move bookings",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newClient().ListBookings(cmd.Context(), listAs, listStatus, listPage)
		if err != nil {
			return explain(err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tGIG\tSTATUS\tPRICE\tCREATED")
		for _, b := range res.Items {
			title := b.GigID.String()
			if b.Gig != nil {
				title = b.Gig.Title
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", b.ID, title, b.Status, b.Price, b.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

// transitionCmd builds "gigctl bookings <verb> <id>" for one target status.
func transitionCmd(verb string, to models.BookingStatus) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <booking-id>",
		Short: fmt.Sprintf("Move a booking to %s", to),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("bad booking id: %w", err)
			}
			b, err := newClient().TransitionBooking(cmd.Context(), id, to)
			if err != nil {
				return explain(err)
			}
			fmt.Printf("booking %s is %s\n", b.ID, b.Status)
			return nil
		},
	}
}

var cancelReason string

var bookingsCancelCmd = &cobra.Command{
	Use:   "cancel <booking-id>",
	Short: "Withdraw a pending booking (buyers only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("bad booking id: %w", err)
		}
		b, err := newClient().CancelBooking(cmd.Context(), id, cancelReason)
		if err != nil {
			return explain(err)
		}
		fmt.Printf("booking %s is %s\n", b.ID, b.Status)
		return nil
	},
}

func init() {
	bookCmd.Flags().StringVarP(&requirements, "requirements", "r", "", "what the seller needs to know")

	f := bookingsCmd.Flags()
	f.StringVar(&listAs, "as", "", "buyer or seller")
	f.StringVar(&listStatus, "status", "", "only bookings in this status")
	f.IntVar(&listPage, "page", 1, "page number")

	bookingsCancelCmd.Flags().StringVar(&cancelReason, "reason", "", "why the booking is withdrawn (10+ characters)")
	_ = bookingsCancelCmd.MarkFlagRequired("reason")

	bookingsCmd.AddCommand(
		transitionCmd("accept", models.BookingAccepted),
		transitionCmd("reject", models.BookingRejected),
		transitionCmd("start", models.BookingInProgress),
		transitionCmd("complete", models.BookingCompleted),
		bookingsCancelCmd,
	)
}
