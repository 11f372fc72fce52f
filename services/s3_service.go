package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Service issues presigned URLs backing image messages. Clients upload
// directly to the bucket and send the object key as message content;
// transcoding stays with the media collaborator.
type S3Service struct {
	Bucket    string
	Presigner *s3.PresignClient
}

// NewS3Service builds the service from ambient AWS configuration.
func NewS3Service(ctx context.Context, region, bucket string) (*S3Service, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Service{Bucket: bucket, Presigner: s3.NewPresignClient(client)}, nil
}

// GenerateUploadURL generates a presigned URL for uploading a chat image.
func (s *S3Service) GenerateUploadURL(ctx context.Context, fileName, fileType string) (string, string, error) {
	key := "chat-media/" + time.Now().UTC().Format("20060102150405") + "-" + fileName
	params := &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(fileType),
	}
	presigned, err := s.Presigner.PresignPutObject(ctx, params, s3.WithPresignExpires(5*time.Minute))
	if err != nil {
		return "", "", fmt.Errorf("failed to presign upload: %w", err)
	}
	return presigned.URL, key, nil
}

// GenerateReadURL generates a presigned URL for reading a stored object.
func (s *S3Service) GenerateReadURL(ctx context.Context, key string) (string, error) {
	params := &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	}
	presigned, err := s.Presigner.PresignGetObject(ctx, params, s3.WithPresignExpires(5*time.Minute))
	if err != nil {
		return "", fmt.Errorf("failed to presign read: %w", err)
	}
	return presigned.URL, nil
}
