package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/snapetech/hlsstitch/internal/job"
)

func downloadCommand() *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Download a media playlist and write the stitched file",
		ArgsUsage: "<manifest-url>",
		Flags: append(pipelineFlags(),
			&cli.StringSliceFlag{
				Name:    "header",
				Aliases: []string{"H"},
				Usage:   `request header "Name: value" for the manifest (repeatable)`,
			},
		),
		Action: downloadAction,
	}
}

func downloadAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("download: exactly one manifest URL is required", exitUsage)
	}
	headers, err := parseHeaders(c.StringSlice("header"))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	defer e.log.Sync()

	out, err := e.sink(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	hist, err := e.history()
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	if hist != nil {
		defer hist.Close()
	}

	st := job.NewState(uuid.NewString())
	w := c.App.ErrWriter
	st.Subscribe(statusPrinter(w))

	p := e.pipeline(nil)
	art, runErr := p.Run(c.Context, job.Request{ManifestURL: c.Args().First(), Headers: headers}, st)

	var location string
	var storeErr error
	if runErr == nil {
		location, storeErr = out.Put(c.Context, st.Snapshot().ID, art)
	}
	if hist != nil {
		if err := hist.Record(c.Context, st.Snapshot(), location); err != nil {
			e.log.Warnw("download: record history failed", "err", err)
		}
	}
	if runErr != nil {
		return cli.Exit(describe(runErr), exitJobFail)
	}
	if storeErr != nil {
		return cli.Exit(fmt.Sprintf("store output: %v", storeErr), exitJobFail)
	}
	fmt.Fprintf(c.App.Writer, "%s (%s, %d/%d segments)\n",
		location, humanize.Bytes(uint64(art.Size)), art.SegmentsRetrieved, art.SegmentsTotal)
	return nil
}

// describe renders the typed job error for a terminal.
func describe(err error) string {
	var (
		me *job.ManifestError
		se *job.StitchError
		ie *job.IncompleteError
	)
	switch {
	case errors.As(err, &me):
		return "manifest failed: " + err.Error()
	case errors.As(err, &ie):
		return fmt.Sprintf("incomplete download: %d of %d segments retrieved", ie.Retrieved, ie.Total)
	case errors.As(err, &se):
		return fmt.Sprintf("stitching failed (%d/%d segments): %v", se.Retrieved, se.Total, se.Err)
	default:
		return err.Error()
	}
}
