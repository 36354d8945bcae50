package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/services"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/gigs"
)

var gigsCmd = &cobra.Command{
	Use:   "gigs",
	Short: "Browse and manage gigs",
}

var gigFilter gigs.ListFilter

var gigsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List published gigs",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newClient().ListGigs(cmd.Context(), gigFilter)
		if err != nil {
			return explain(err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tPRICE\tRATING")
		for _, g := range res.Items {
			rating := "-"
			if g.Seller != nil && g.Seller.RatingCount > 0 {
				rating = fmt.Sprintf("%.2f (%d)", g.Seller.Rating, g.Seller.RatingCount)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", g.ID, g.Title, g.Category, g.Price, rating)
		}
		fmt.Fprintf(w, "\npage %d of %d, %d gigs\n", res.Meta.Page, res.Meta.TotalPages, res.Meta.TotalItems)
		return w.Flush()
	},
}

var gigsShowCmd = &cobra.Command{
	Use:   "show <gig-id>",
	Short: "Show one gig",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("bad gig id: %w", err)
		}
		g, err := newClient().GetGig(cmd.Context(), id)
		if err != nil {
			return explain(err)
		}
		return printJSON(g)
	},
}

var newGig gigs.CreateInput

var gigsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a gig (sellers only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := newClient().CreateGig(cmd.Context(), newGig)
		if err != nil {
			return explain(err)
		}
		fmt.Printf("created %s (%s)\n", g.ID, g.Status)
		return nil
	},
}

var gigsPublishCmd = &cobra.Command{
	Use:   "publish <gig-id>",
	Short: "Publish a draft gig",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("bad gig id: %w", err)
		}
		g, err := newClient().PublishGig(cmd.Context(), id)
		if err != nil {
			return explain(err)
		}
		fmt.Printf("%s is %s\n", g.ID, g.Status)
		return nil
	},
}

func init() {
	lf := gigsListCmd.Flags()
	lf.StringVarP(&gigFilter.Q, "query", "q", "", "search title and description")
	lf.StringVar(&gigFilter.Category, "category", "", "category slug")
	lf.Int64Var(&gigFilter.MinPrice, "min-price", 0, "minimum price")
	lf.Int64Var(&gigFilter.MaxPrice, "max-price", 0, "maximum price")
	lf.StringVar(&gigFilter.Sort, "sort", "", "latest, price_low or price_high")
	lf.IntVar(&gigFilter.Page.Page, "page", 1, "page number")
	lf.IntVar(&gigFilter.Limit, "limit", services.DefaultLimit, "page size")

	cf := gigsCreateCmd.Flags()
	cf.StringVar(&newGig.Title, "title", "", "gig title")
	cf.StringVar(&newGig.Description, "description", "", "what the buyer gets")
	cf.Int64Var(&newGig.Price, "price", 0, "price in whole currency units")
	cf.StringVar(&newGig.Category, "category", "", "category slug")
	cf.BoolVar(&newGig.Publish, "publish", false, "publish right away")
	_ = gigsCreateCmd.MarkFlagRequired("title")

	gigsCmd.AddCommand(gigsListCmd, gigsShowCmd, gigsCreateCmd, gigsPublishCmd)
}
