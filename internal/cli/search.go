package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"imgsearch/internal/catalog"
	"imgsearch/internal/db"
)

var flagSearchK int

var searchCmd = &cobra.Command{
	Use:   "search <descriptor file>...",
	Short: "Rank a saved catalog against query files without a server",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&flagSearchK, "top", "k", catalog.DefaultTopMatches, "number of matches to print, 0 for all")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	conf, err := loadConfig()
	if err != nil {
		return err
	}

	d, err := db.New(conf)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Catalog.Load(cmd.Context(), conf.DBPath, conf.DBName, false); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, path := range args {
		matches, err := d.Search(cmd.Context(), path)
		if err != nil {
			return fmt.Errorf("search %s: %w", path, err)
		}
		if flagSearchK > 0 {
			matches = catalog.Top(matches, flagSearchK)
		}

		fmt.Fprintf(w, "%s\n", path)
		for rank, m := range matches {
			fmt.Fprintf(w, "  %d\t%s\t%.6f\n", rank+1, m.Name, m.Score)
		}
	}
	return w.Flush()
}
