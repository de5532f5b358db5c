package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded jobs, most recent first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Usage: "maximum number of jobs (0 = all)", Value: 20},
		},
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	defer e.log.Sync()
	hist, err := e.history()
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	if hist == nil {
		return cli.Exit("history: no history database configured (set HLS_STITCH_HISTORY_DB)", exitUsage)
	}
	defer hist.Close()

	entries, err := hist.List(c.Context, c.Int("limit"))
	if err != nil {
		return cli.Exit(err.Error(), exitJobFail)
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENDED\tPHASE\tSEGMENTS\tSIZE\tMANIFEST\tRESULT")
	for _, en := range entries {
		result := en.Location
		if en.Error != "" {
			result = en.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\t%s\n",
			humanize.RelTime(en.EndedAt, time.Now(), "ago", "from now"), en.Phase,
			en.SegmentsRetrieved, en.SegmentsTotal, humanize.Bytes(uint64(en.Bytes)), en.ManifestURL, result)
	}
	return tw.Flush()
}
