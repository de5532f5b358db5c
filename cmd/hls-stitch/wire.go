package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/snapetech/hlsstitch/internal/assembler"
	"github.com/snapetech/hlsstitch/internal/config"
	"github.com/snapetech/hlsstitch/internal/history"
	"github.com/snapetech/hlsstitch/internal/hls"
	"github.com/snapetech/hlsstitch/internal/httpclient"
	"github.com/snapetech/hlsstitch/internal/job"
	"github.com/snapetech/hlsstitch/internal/logging"
	"github.com/snapetech/hlsstitch/internal/metrics"
	"github.com/snapetech/hlsstitch/internal/sink"
)

// env is everything a command needs, built from config and flags.
type env struct {
	cfg *config.Config
	log *zap.SugaredLogger
}

// loadEnv reads .env, the config file and the environment, applies the
// flag overrides registered by pipelineFlags, validates and builds the logger.
func loadEnv(c *cli.Context) (*env, error) {
	if err := config.LoadEnvFile(c.String("env-file")); err != nil {
		return nil, cli.Exit(fmt.Sprintf("env file: %v", err), exitUsage)
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, cli.Exit(err.Error(), exitUsage)
	}
	applyFlags(c, cfg)
	cfg.Finalize()
	if err := cfg.Validate(); err != nil {
		return nil, cli.Exit(fmt.Sprintf("invalid config: %v", err), exitUsage)
	}
	zl, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: c.App.ErrWriter})
	if err != nil {
		return nil, cli.Exit(err.Error(), exitUsage)
	}
	return &env{cfg: cfg, log: zl.Sugar()}, nil
}

func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "batch-size", Usage: "segments fetched concurrently per batch"},
		&cli.StringFlag{Name: "output-name", Usage: "assembler output name; the extension picks the container (.mp4, .ts)"},
		&cli.StringFlag{Name: "assembler", Usage: "ffmpeg or memory"},
		&cli.StringFlag{Name: "out-dir", Usage: "directory for stitched files"},
		&cli.BoolFlag{Name: "forward-headers", Usage: "send --header values with segment requests too"},
		&cli.BoolFlag{Name: "require-complete", Usage: "fail instead of stitching when any segment is missing"},
	}
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if c.IsSet("batch-size") {
		cfg.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("output-name") {
		cfg.OutputName = c.String("output-name")
	}
	if c.IsSet("assembler") {
		cfg.Assembler = strings.ToLower(c.String("assembler"))
	}
	if c.IsSet("out-dir") {
		cfg.OutputDir = c.String("out-dir")
	}
	if c.IsSet("forward-headers") {
		cfg.ForwardHeaders = c.Bool("forward-headers")
	}
	if c.IsSet("require-complete") {
		cfg.RequireComplete = c.Bool("require-complete")
	}
}

func (e *env) httpClient() *http.Client {
	return httpclient.New(httpclient.Options{
		Timeout:           e.cfg.HTTPTimeout,
		MaxConnsPerHost:   e.cfg.MaxConnsPerHost,
		RequestsPerSecond: e.cfg.RequestsPerSecond,
		Burst:             e.cfg.RequestBurst,
		Cookies:           true,
	})
}

func (e *env) assembler() assembler.Factory {
	if e.cfg.Assembler == config.AssemblerMemory {
		return assembler.Memory{}
	}
	return &assembler.FFmpeg{Bin: e.cfg.FFmpegPath, WorkDir: e.cfg.WorkDir}
}

func (e *env) pipeline(rec *metrics.Recorder) *job.Pipeline {
	client := e.httpClient()
	return &job.Pipeline{
		Resolver:  &hls.HTTPResolver{Client: client},
		Assembler: e.assembler(),
		Client:    client,
		Config: job.Config{
			BatchSize:       e.cfg.BatchSize,
			OutputName:      e.cfg.OutputName,
			ContentType:     e.cfg.ContentType,
			ForwardHeaders:  e.cfg.ForwardHeaders,
			RequireComplete: e.cfg.RequireComplete,
		},
		Metrics: rec,
		Log:     e.log,
	}
}

func (e *env) sink(ctx context.Context) (sink.Sink, error) {
	if !e.cfg.UseS3() {
		return &sink.Local{Dir: e.cfg.OutputDir, Log: e.log}, nil
	}
	s, err := sink.NewS3(ctx, sink.S3Options{
		Bucket:       e.cfg.S3.Bucket,
		Prefix:       e.cfg.S3.Prefix,
		Region:       e.cfg.S3.Region,
		Endpoint:     e.cfg.S3.Endpoint,
		UsePathStyle: e.cfg.S3.PathStyle,
	})
	if err != nil {
		return nil, err
	}
	s.Log = e.log
	return s, nil
}

// history opens the job history, or returns nil when none is configured.
func (e *env) history() (*history.Store, error) {
	if e.cfg.HistoryDB == "" {
		return nil, nil
	}
	return history.Open(e.cfg.HistoryDB)
}

// parseHeaders turns repeated "Name: value" flags into a header map.
func parseHeaders(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("header %q: want \"Name: value\"", v)
		}
		out[name] = strings.TrimSpace(value)
	}
	return out, nil
}
