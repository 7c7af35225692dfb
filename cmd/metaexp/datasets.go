package metaexp

import (
	"context"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/soundprediction/metaexp/pkg/config"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the datasets available for rating",
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

		datasets := a.client.AvailableDatasets()
		names := make([]string, 0, len(datasets))
		for name := range datasets {
			names = append(names, name)
		}
		sort.Strings(names)

		bold := color.New(color.Bold)
		out := cmd.OutOrStdout()
		for _, name := range names {
			fmt.Fprintf(out, "%s\t%s\n", bold.Sprint(name), datasets[name])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
}
