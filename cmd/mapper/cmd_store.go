package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/siherrmann/mapper"
	"github.com/siherrmann/mapper/core/catalog"
	"github.com/siherrmann/mapper/core/pipeline"
	"github.com/siherrmann/mapper/helper"
	"github.com/spf13/cobra"
)

var sheetsCmd = &cobra.Command{
	Use:   "sheets [file]",
	Short: "List the sheets of a workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := catalog.SheetNames(args[0])
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored mapping runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		dbConfig, err := helper.NewDatabaseConfiguration()
		if err != nil {
			return helper.NewError("database configuration", err)
		}
		m, err := mapper.NewMapper(dbConfig, pipeline.DefaultEmbeddingDim)
		if err != nil {
			return err
		}
		defer m.Close()

		runs, err := m.RunHistory(ctx, runsLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tSOURCE\tTARGET\tSTATE\tBATCHES\tFAILED\tCREATED")
		for _, run := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				run.RID, run.SourceCatalog, run.TargetCatalog, run.State,
				run.TotalBatches, run.FailedBatches, run.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list")
}
