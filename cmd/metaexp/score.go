package metaexp

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/soundprediction/metaexp/pkg/config"
	"github.com/soundprediction/metaexp/pkg/types"
)

var scoreCmd = &cobra.Command{
	Use:   "score <dataset>",
	Short: "Fit domain scoring on a dataset's ranking graph and print every meta-path's domain value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		a, err := newApp(context.Background(), cfg)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		pool, chains, err := a.client.DomainScores(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		showChains, _ := cmd.Flags().GetBool("chains")
		printScores(cmd.OutOrStdout(), pool, chains, showChains)
		return nil
	},
}

func init() {
	scoreCmd.Flags().Bool("chains", false, "also print the maximal chains of the ranking graph")
	rootCmd.AddCommand(scoreCmd)
}

// printScores lists meta-paths by descending domain value.
func printScores(w io.Writer, pool []*types.MetaPath, chains [][]*types.MetaPath, showChains bool) {
	sorted := append([]*types.MetaPath(nil), pool...)
	sort.SliceStable(sorted, func(i, j int) bool {
		vi, _ := sorted[i].DomainValue()
		vj, _ := sorted[j].DomainValue()
		return vi > vj
	})

	high := color.New(color.FgGreen)
	low := color.New(color.FgRed)
	for _, mp := range sorted {
		v, _ := mp.DomainValue()
		c := color.New(color.Reset)
		switch {
		case v >= 0.66:
			c = high
		case v < 0.33:
			c = low
		}
		fmt.Fprintf(w, "%s\t%8.1f\t%s\n", c.Sprintf("%.3f", v), mp.StructuralValue(), mp.UIRepresentation())
	}

	if !showChains {
		return
	}
	fmt.Fprintln(w)
	for i, chain := range chains {
		fmt.Fprintf(w, "chain %d:", i+1)
		for _, mp := range chain {
			fmt.Fprintf(w, " %s", mp.Key())
		}
		fmt.Fprintln(w)
	}
}
