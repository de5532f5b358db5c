package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/snapetech/hlsstitch/internal/config"
	"github.com/snapetech/hlsstitch/internal/health"
	"github.com/snapetech/hlsstitch/internal/hls"
	"github.com/snapetech/hlsstitch/internal/httpclient"
)

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Resolve a manifest and verify the assembler, without downloading segments",
		ArgsUsage: "[manifest-url]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "header", Aliases: []string{"H"}, Usage: `request header "Name: value" (repeatable)`},
			&cli.StringFlag{Name: "assembler", Usage: "ffmpeg or memory"},
		},
		Action: checkAction,
	}
}

func checkAction(c *cli.Context) error {
	headers, err := parseHeaders(c.StringSlice("header"))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	defer e.log.Sync()
	w := c.App.Writer
	failed := false

	if e.cfg.Assembler == config.AssemblerFFmpeg {
		v, err := health.CheckFFmpeg(c.Context, e.cfg.FFmpegPath)
		if err != nil {
			fmt.Fprintf(w, "assembler: FAIL %v\n", err)
			failed = true
		} else {
			fmt.Fprintf(w, "assembler: ok %s\n", v)
		}
	} else {
		fmt.Fprintf(w, "assembler: ok %s (in-process)\n", e.cfg.Assembler)
	}

	if c.NArg() > 0 {
		rep, err := health.CheckManifest(c.Context, httpclient.WithTimeout(e.cfg.HTTPTimeout), c.Args().First(), headers)
		switch {
		case err != nil:
			fmt.Fprintf(w, "manifest: FAIL %v\n", err)
			failed = true
		case rep.Kind != hls.KindSegments:
			fmt.Fprintf(w, "manifest: FAIL %s\n", rep)
			failed = true
		default:
			fmt.Fprintf(w, "manifest: ok %s\n", rep)
		}
	}
	if failed {
		return cli.Exit("check failed", exitJobFail)
	}
	return nil
}
