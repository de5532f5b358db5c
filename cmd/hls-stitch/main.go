// Command hls-stitch downloads an HLS media playlist and stitches its segments
// into one file.
//
//	download  Fetch one manifest and write the stitched file (to a directory or S3)
//	serve     Run the HTTP job API
//	check     Resolve a manifest and verify the assembler without downloading segments
//	history   List recorded jobs
//
// Settings come from an optional YAML file (--config), then HLS_STITCH_*
// environment variables (a .env file is read first), then command flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

const (
	exitOK      = 0
	exitJobFail = 1
	exitUsage   = 2
)

var version = "dev"

func newApp() *cli.App {
	return &cli.App{
		Name:    "hls-stitch",
		Usage:   "Download HLS playlists and stitch the segments into a single file",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file",
				EnvVars: []string{"HLS_STITCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file loaded before reading the environment",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn, error (overrides config)",
			},
		},
		Commands: []*cli.Command{
			downloadCommand(),
			serveCommand(),
			checkCommand(),
			historyCommand(),
		},
		ExitErrHandler: func(c *cli.Context, err error) {},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := newApp().RunContext(ctx, os.Args)
	stop()
	os.Exit(exitCode(err))
}

// exitCode maps command errors to the process exit status and prints them.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(os.Stderr, "hls-stitch:", err)
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return exitUsage
}
