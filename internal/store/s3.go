package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/inferbench/bench-server/internal/config"
	"github.com/inferbench/bench-server/internal/types"
)

// S3Store mirrors the local layout into an S3-compatible bucket so a static
// leaderboard can read records straight from object storage.
type S3Store struct {
	client *s3.Client
	cfg    *config.S3Config
	logger *zap.Logger
}

func NewS3Store(cfg *config.Config, logger *zap.Logger) (*S3Store, error) {
	if cfg.S3 == nil {
		return nil, fmt.Errorf("s3 config is not set")
	}

	credentialsProvider := credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, "")
	awsCfg, err := awsConfig.LoadDefaultConfig(
		context.TODO(),
		awsConfig.WithRegion("auto"),
		awsConfig.WithCredentialsProvider(credentialsProvider),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = &cfg.S3.EndpointUrl
	})

	return &S3Store{
		client: client,
		cfg:    cfg.S3,
		logger: logger.Named("s3store"),
	}, nil
}

func (s *S3Store) Save(ctx context.Context, rec types.ResultRecord) (string, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	folder := strings.TrimSuffix(s.cfg.Folder, "/")
	key := recordPath(rec).FullPath
	if folder != "" {
		key = fmt.Sprintf("%s/%s", folder, key)
	}

	mtype := mimetype.Detect(data).String()
	input := s3.PutObjectInput{
		Key:         &key,
		ContentType: &mtype,
		Bucket:      &s.cfg.Bucket,
		Body:        bytes.NewReader(data),
		ACL:         s3types.ObjectCannedACLPublicRead,
	}
	if _, err := s.client.PutObject(ctx, &input); err != nil {
		return "", err
	}

	return s.objectURL(key), nil
}

// objectURL derives the public URL for an uploaded key. Providers without a
// guessable URL scheme need a vanity URL configured.
func (s *S3Store) objectURL(key string) string {
	if s.cfg.VanityUrl != "" {
		return fmt.Sprintf("%s/%s", strings.TrimSuffix(s.cfg.VanityUrl, "/"), key)
	}

	switch {
	case strings.Contains(s.cfg.EndpointUrl, "digitaloceanspaces.com"):
		return fmt.Sprintf("https://%s.%s.cdn.digitaloceanspaces.com/%s", s.cfg.Bucket, s.cfg.Region, key)

	case strings.Contains(s.cfg.EndpointUrl, "amazonaws.com"):
		endpoint := strings.TrimPrefix(s.cfg.EndpointUrl, "https://")
		endpoint = strings.TrimSuffix(endpoint, "/")
		return fmt.Sprintf("https://%s.%s/%s", s.cfg.Bucket, endpoint, key)

	default:
		s.logger.Warn("cannot infer public URL for bucket, set s3.vanity_url",
			zap.String("endpoint", s.cfg.EndpointUrl))
		return ""
	}
}
