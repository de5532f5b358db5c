package main

import (
	"github.com/urfave/cli/v2"

	"github.com/snapetech/hlsstitch/internal/job"
	"github.com/snapetech/hlsstitch/internal/metrics"
	"github.com/snapetech/hlsstitch/internal/server"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP job API",
		Flags: append(pipelineFlags(),
			&cli.StringFlag{Name: "listen", Usage: "listen address (overrides config)"},
		),
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	defer e.log.Sync()
	if v := c.String("listen"); v != "" {
		e.cfg.ListenAddr = v
	}

	out, err := e.sink(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	hist, err := e.history()
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	rec := metrics.New()
	archiver := &server.Archiver{Sink: out, Log: e.log}
	srv := &server.Server{Addr: e.cfg.ListenAddr, Metrics: rec, Log: e.log}
	if hist != nil {
		defer hist.Close()
		archiver.History = hist
		srv.History = hist
	}
	srv.Jobs = &job.Manager{
		Pipeline: e.pipeline(rec),
		Retain:   e.cfg.RetainJobs,
		OnDone:   archiver.Done,
		Log:      e.log,
	}
	if err := srv.Run(c.Context); err != nil {
		return cli.Exit(err.Error(), exitJobFail)
	}
	return nil
}
