package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vango-dev/storefront/internal/errors"
	"github.com/vango-dev/storefront/pkg/catalog"
)

func catalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the product catalog",
		Long: `Browse the product catalog.

Requests carry the stored session token when one is signed in.`,
	}

	cmd.AddCommand(
		catalogHomeCmd(a),
		catalogProductsCmd(a),
	)
	return cmd
}

func catalogHomeCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "home",
		Short: "Show the landing page: featured products, new arrivals and deals",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closeStorage, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStorage()

			home, err := a.catalogClient(store).Home(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), home)
			}

			out := cmd.OutOrStdout()
			printSection(out, "Featured", home.FeaturedProducts)
			printSection(out, "New arrivals", home.NewArrivals)
			printSection(out, "Limited deals", home.LimitedDeals)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the response as JSON")
	return cmd
}

func catalogProductsCmd(a *app) *cobra.Command {
	var (
		q      catalog.Query
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products",
		Example: `  storefront catalog products --search lamp
  storefront catalog products --category Home --max-price 50 --sort priceAsc`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch q.Sort {
			case "", catalog.SortCreatedAtDesc, catalog.SortPriceAsc, catalog.SortPriceDesc:
			default:
				return errors.New("S501").
					WithDetail(fmt.Sprintf("--sort %q is not a catalog sort order.", q.Sort)).
					WithSuggestion("Use createdAtDesc, priceAsc or priceDesc.")
			}
			if q.MinPrice < 0 || q.MaxPrice < 0 || q.Page < 0 || q.Limit < 0 {
				return errors.New("S501").
					WithDetail("Prices, --page and --limit must not be negative.")
			}

			ctx := cmd.Context()
			store, closeStorage, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStorage()

			page, err := a.catalogClient(store).Products(ctx, q)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), page)
			}

			out := cmd.OutOrStdout()
			printProducts(out, page.Products)
			fmt.Fprintf(out, "\nPage %d of %d (%d products)\n", page.CurrentPage, page.TotalPages, page.TotalItems)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&q.Search, "search", "", "Search text")
	f.StringVar(&q.Category, "category", "", "Category name")
	f.Float64Var(&q.MinPrice, "min-price", 0, "Minimum price")
	f.Float64Var(&q.MaxPrice, "max-price", 0, "Maximum price")
	f.StringVar(&q.Sort, "sort", "", "Sort order: createdAtDesc, priceAsc or priceDesc")
	f.IntVar(&q.Page, "page", 0, "Page number")
	f.IntVar(&q.Limit, "limit", 0, "Products per page")
	f.BoolVar(&asJSON, "json", false, "Print the response as JSON")
	return cmd
}

func printSection(w io.Writer, title string, products []catalog.Product) {
	fmt.Fprintf(w, "%s\n", title)
	if len(products) == 0 {
		info(w, "(none)")
		fmt.Fprintln(w)
		return
	}
	printProducts(w, products)
	fmt.Fprintln(w)
}

func printProducts(w io.Writer, products []catalog.Product) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tNAME\tPRICE\tSTOCK")
	for _, p := range products {
		price := fmt.Sprintf("%.2f", p.Price)
		if p.OriginalPrice > 0 {
			price += fmt.Sprintf(" (was %.2f)", p.OriginalPrice)
		}
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%d\n", p.ID, p.Name, price, p.Stock)
	}
	_ = tw.Flush()
}
