// Package archive uploads completed artifacts to S3-compatible storage.
// Archival is best-effort and strictly optional: the job already returned
// its video synchronously, so a failed upload is logged, never surfaced.
package archive

import (
	"context"
	"fmt"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"clipsmith/internal"
	"clipsmith/internal/logging"
)

type Archiver struct {
	bucket string
	prefix string
	upl    *manager.Uploader
	log    *logging.Logger
}

// New builds an Archiver from the S3 settings, or returns (nil, nil) when
// archiving is not configured. A nil *Archiver is safe to call.
func New(cfg internal.Config, log *logging.Logger) (*Archiver, error) {
	if !cfg.ArchiveConfigured() {
		return nil, nil
	}

	endpoint := cfg.S3Endpoint
	forcePathStyle := true
	if strings.Contains(endpoint, "amazonaws.com") {
		forcePathStyle = false
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		o.UsePathStyle = forcePathStyle
		o.BaseEndpoint = &endpoint
	})

	return &Archiver{
		bucket: cfg.S3Bucket,
		prefix: cfg.S3Prefix,
		upl:    manager.NewUploader(client),
		log:    log,
	}, nil
}

func (a *Archiver) Enabled() bool { return a != nil }

// Store streams the file at path to the archive bucket and returns the
// object key. The file is never read whole into memory.
func (a *Archiver) Store(ctx context.Context, jobID, path string) (string, error) {
	if a == nil {
		return "", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	key := fmt.Sprintf("%sshort_%s.mp4", a.prefix, jobID)
	contentType := "video/mp4"
	_, err = a.upl.Upload(ctx, &awss3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &key,
		Body:        f,
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	a.log.Infof("archive: stored %s", key)
	return key, nil
}
