package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/snapetech/hlsstitch/internal/cache"
	"github.com/snapetech/hlsstitch/internal/job"
	"github.com/snapetech/hlsstitch/internal/logging"
)

// S3Options selects the bucket and endpoint.
type S3Options struct {
	Bucket string
	Prefix string
	Region string // "" = default AWS chain
	// Endpoint is a custom URL for S3-compatible stores (MinIO, R2).
	Endpoint     string
	UsePathStyle bool
}

// PutObjectAPI is the subset of *s3.Client the sink uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads artifacts as <prefix>/<job id>/<name>.
type S3 struct {
	Client PutObjectAPI
	Bucket string
	Prefix string
	Log    *zap.SugaredLogger
}

// NewS3 builds an S3 sink from the default AWS credential chain
// (env vars, shared config, IAM role).
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, errors.New("sink: S3 bucket is required")
	}
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("sink: load AWS config: %w", err)
	}
	var s3Opts []func(*s3.Options)
	if opts.Endpoint != "" {
		endpoint := opts.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = &endpoint })
	}
	if opts.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}
	return &S3{Client: s3.NewFromConfig(awsCfg, s3Opts...), Bucket: opts.Bucket, Prefix: opts.Prefix}, nil
}

func (s *S3) Put(ctx context.Context, jobID string, a *job.Artifact) (string, error) {
	if a == nil || len(a.Data) == 0 {
		return "", fmt.Errorf("sink: empty artifact")
	}
	key := cache.Key(s.Prefix, jobID, a.Name)
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.Bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(a.Data),
		ContentLength:      aws.Int64(int64(len(a.Data))),
		ContentType:        aws.String(a.ContentType),
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", a.Name)),
	})
	if err != nil {
		return "", fmt.Errorf("sink: put s3://%s/%s: %w", s.Bucket, key, err)
	}
	loc := fmt.Sprintf("s3://%s/%s", s.Bucket, key)
	logging.OrNop(s.Log).Infow("sink: artifact uploaded", "job", jobID, "location", loc, "bytes", len(a.Data))
	return loc, nil
}
