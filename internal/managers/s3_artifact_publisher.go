package managers

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/flowbaker/runreel/pkg/domain"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/rs/zerolog/log"
)

type S3ClientConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// NewS3Client builds an S3 client. Static credentials are used when both keys are set, otherwise
// the default AWS credential chain applies.
func NewS3Client(config S3ClientConfig) (*s3.S3, error) {
	awsConfig := &aws.Config{
		Region:           aws.String(config.Region),
		S3ForcePathStyle: aws.Bool(config.ForcePathStyle),
	}

	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKeyID, config.SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}

	return s3.New(sess), nil
}

type s3ArtifactPublisher struct {
	uploader       *s3manager.Uploader
	bucket         string
	publicDomain   string
	privateDomain  string
	forcePathStyle bool
}

type S3ArtifactPublisherDependencies struct {
	Client         s3iface.S3API
	Bucket         string
	PublicDomain   string
	PrivateDomain  string
	ForcePathStyle bool
}

func NewS3ArtifactPublisher(deps S3ArtifactPublisherDependencies) domain.ArtifactPublisher {
	return &s3ArtifactPublisher{
		uploader:       s3manager.NewUploaderWithClient(deps.Client),
		bucket:         deps.Bucket,
		publicDomain:   strings.TrimSuffix(deps.PublicDomain, "/"),
		privateDomain:  strings.TrimSuffix(deps.PrivateDomain, "/"),
		forcePathStyle: deps.ForcePathStyle,
	}
}

func (p *s3ArtifactPublisher) Upload(ctx context.Context, params domain.UploadParams) (*domain.UploadResult, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("upload name cannot be empty")
	}

	key := path.Join(params.Folder, params.Name)

	contentType := params.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	output, err := p.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(params.File),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to upload object to S3")
		return nil, fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return &domain.UploadResult{
		PublicURL:  p.objectURL(p.publicDomain, key, output.Location),
		PrivateURL: p.objectURL(p.privateDomain, key, output.Location),
	}, nil
}

func (p *s3ArtifactPublisher) objectURL(origin, key, location string) string {
	if origin == "" {
		return location
	}

	if p.forcePathStyle {
		return fmt.Sprintf("%s/%s/%s", origin, p.bucket, key)
	}

	return fmt.Sprintf("%s/%s", origin, key)
}
