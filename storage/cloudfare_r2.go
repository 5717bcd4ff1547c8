package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/Dosada05/tournament-hub/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const recordContentType = "application/zstd"

type CloudflareR2StoreConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	// Prefix отделяет записи хаба от остального содержимого бакета.
	Prefix string
}

type cloudflareR2Store struct {
	s3Client   *s3.Client
	bucketName string
	prefix     string
	now        func() time.Time
}

func NewCloudflareR2Store(ctx context.Context, cfg CloudflareR2StoreConfig) (SnapshotStore, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.BucketName == "" {
		return nil, errors.New("invalid Cloudflare R2 configuration: account, keys and bucket are required")
	}

	r2Resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL:           fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID),
			SigningRegion: "auto",
		}, nil
	})

	sdkCfg, err := config.LoadDefaultConfig(ctx,
		config.WithEndpointResolverWithOptions(r2Resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config for R2: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "match-state"
	}

	return &cloudflareR2Store{
		s3Client:   s3.NewFromConfig(sdkCfg),
		bucketName: cfg.BucketName,
		prefix:     prefix,
		now:        time.Now,
	}, nil
}

func (s *cloudflareR2Store) objectKey(key models.MatchStateKey) string {
	return path.Join(s.prefix, recordName(key))
}

func (s *cloudflareR2Store) Save(ctx context.Context, state *models.CachedMatchState) error {
	record := state.Clone()
	record.SavedToDisk = s.now()

	data, err := encodeRecord(record)
	if err != nil {
		return err
	}

	key := s.objectKey(state.Key())
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(recordContentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload match state to R2 (key: %s): %w", key, err)
	}

	state.SavedToDisk = record.SavedToDisk
	return nil
}

func (s *cloudflareR2Store) Load(ctx context.Context, key models.MatchStateKey) (*models.CachedMatchState, error) {
	objectKey := s.objectKey(key)
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to fetch match state from R2 (key: %s): %w", objectKey, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read match state from R2 (key: %s): %w", objectKey, err)
	}
	state, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	if state.Key() != key {
		return nil, ErrSnapshotNotFound
	}
	return state, nil
}

func (s *cloudflareR2Store) Delete(ctx context.Context, key models.MatchStateKey) error {
	objectKey := s.objectKey(key)
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete match state from R2 (key: %s): %w", objectKey, err)
	}
	return nil
}

// Sweep relies on the object LastModified time, which matches SavedToDisk
// closely enough for day-scale retention.
func (s *cloudflareR2Store) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName),
		Prefix: aws.String(s.prefix + "/"),
	})

	removed := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return removed, fmt.Errorf("failed to list match state objects in R2: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
				continue
			}
			_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucketName),
				Key:    obj.Key,
			})
			if err != nil {
				return removed, fmt.Errorf("failed to delete expired match state from R2 (key: %s): %w", aws.ToString(obj.Key), err)
			}
			removed++
		}
	}
	return removed, nil
}
