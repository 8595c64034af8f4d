package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"salesbot/internal/charts"
	"salesbot/internal/config"
)

// ObjectPutter is the part of *s3.Client the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive keeps a copy of every delivered chart under
// <prefix><yyyy-mm-dd>/<session>/<file>.
type S3Archive struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

func NewS3Archive(client ObjectPutter, bucket, prefix string, logger *slog.Logger) *S3Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Archive{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

// NewS3ArchiveFromConfig uses the default AWS credential chain. A custom
// endpoint switches to path-style addressing for S3-compatible servers.
func NewS3ArchiveFromConfig(ctx context.Context, cfg config.ArtifactConfig, logger *slog.Logger) (*S3Archive, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.ArchiveEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.ArchiveEndpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Archive(client, cfg.ArchiveBucket, cfg.ArchivePrefix, logger), nil
}

func (a *S3Archive) key(name, sessionID string) string {
	return fmt.Sprintf("%s%s/%s/%s", a.prefix, a.now().UTC().Format("2006-01-02"), sanitize(sessionID), name)
}

// Put uploads chart and returns the object key.
func (a *S3Archive) Put(ctx context.Context, chart *charts.Chart, sessionID string) (string, error) {
	key := a.key(FileName(chart, sessionID), sessionID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(chart.PNG),
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", key, err)
	}

	a.logger.Debug("chart archived", "bucket", a.bucket, "key", key)
	return key, nil
}
