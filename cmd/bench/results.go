package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/inferbench/bench-server/internal/config"
	"github.com/inferbench/bench-server/internal/db"
	"github.com/inferbench/bench-server/internal/db/repository"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Query indexed benchmark results",
	RunE:  runResults,
}

func init() {
	flags := resultsCmd.Flags()

	flags.String("model", "", "Filter by model id")
	flags.String("task", "", "Filter by task")
	flags.String("platform", "", "Filter by platform")
	flags.String("mode", "", "Filter by mode")
	flags.String("device", "", "Filter by device")
	flags.String("dtype", "", "Filter by dtype")
	flags.String("status", "", "Filter by status")
	flags.Int("limit", 0, "Maximum rows to print")
}

func runResults(cmd *cobra.Command, _ []string) error {
	driver, err := db.NewConnection(cmd.Context(), config.GetConfig())
	if err != nil {
		return err
	}

	repo := repository.NewResultRepository(driver.GetDB())

	flags := cmd.Flags()
	filter := repository.ResultFilter{}
	filter.ModelID, _ = flags.GetString("model")
	filter.Task, _ = flags.GetString("task")
	filter.Platform, _ = flags.GetString("platform")
	filter.Mode, _ = flags.GetString("mode")
	filter.Device, _ = flags.GetString("device")
	filter.DType, _ = flags.GetString("dtype")
	filter.Status, _ = flags.GetString("status")
	filter.Limit, _ = flags.GetInt("limit")

	rows, err := repo.List(cmd.Context(), filter)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		fmt.Println("No results found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTITY\tMODEL\tSTATUS\tLOAD P50\tFIRST P50\tSUBSEQ P50\tCREATED")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Identity,
			row.ModelID,
			row.Status,
			millis(row.LoadP50),
			millis(row.FirstInferP50),
			millis(row.SubseqP50),
			row.CreatedAt.Time.Format(time.RFC3339),
		)
	}

	return w.Flush()
}

func millis(v float64) string {
	if v == 0 {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 1, 64) + "ms"
}
