// Package s3 stores backups in an Amazon S3 bucket.
package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
	"github.com/custodia-labs/shelter-agent/internal/core/ports/driven"
)

const backupPrefix = "backups"

// Provider implements driven.CloudProvider on top of S3. Backups are
// stored under the backups/ prefix and addressed by object key.
type Provider struct {
	name   string
	bucket string
	client *s3.Client
}

var _ driven.CloudProvider = (*Provider)(nil)

// Config carries static credentials plus the target bucket.
type Config struct {
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
}

// NewProvider creates an S3 provider with static credentials.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: aws requires access_key, secret_key and bucket", domain.ErrAuthRequired)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return &Provider{
		name:   "Amazon S3",
		bucket: cfg.Bucket,
		client: s3.NewFromConfig(awsCfg),
	}, nil
}

// ID returns the provider identifier used in task records.
func (p *Provider) ID() string { return "aws" }

// Name returns the human-readable provider name.
func (p *Provider) Name() string { return p.name }

// Upload stores the local file under the backups/ prefix and returns the
// object key as the backup identifier.
func (p *Provider) Upload(ctx context.Context, localPath, destination string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	key := path.Join(backupPrefix, filepath.Base(destination))
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("uploading to s3: %w", err)
	}
	return key, nil
}

// Download fetches the object with the given key into localPath.
func (p *Provider) Download(ctx context.Context, backupID, localPath string) error {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(backupID),
	})
	if err != nil {
		return fmt.Errorf("downloading %s from s3: %w", backupID, err)
	}
	defer out.Body.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", localPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, out.Body); err != nil {
		return fmt.Errorf("writing %s: %w", localPath, err)
	}
	return nil
}

// Delete removes the object from the bucket.
func (p *Provider) Delete(ctx context.Context, backupID string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(backupID),
	})
	if err != nil {
		return fmt.Errorf("deleting %s from s3: %w", backupID, err)
	}
	return nil
}

// VerifyConnection checks that the credentials can reach the bucket.
func (p *Provider) VerifyConnection(ctx context.Context) error {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	if err != nil {
		return fmt.Errorf("%w: s3 head bucket failed: %v", domain.ErrAuthExpired, err)
	}
	return nil
}

// RefreshToken is a no-op: static credentials have nothing to refresh.
func (p *Provider) RefreshToken(_ context.Context) error {
	return fmt.Errorf("%w: static aws credentials cannot be refreshed", domain.ErrTokenRefreshFailed)
}

// Authenticate is the interactive fallback. The agent runs headless, so
// credential rotation has to happen out of band.
func (p *Provider) Authenticate(_ context.Context) error {
	return fmt.Errorf("%w: aws re-authentication requires updating the keys in the config file", domain.ErrAuthRequired)
}
