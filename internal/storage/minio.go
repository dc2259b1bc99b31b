package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"voicereport-platform/internal/config"
	"voicereport-platform/internal/conversation"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrDisabled = errors.New("storage: not configured")

// MinioStore uploads conversation artifacts to an S3-compatible bucket.
// Object keys are scoped per account and conversation:
// <account_id>/<conversation_id>/<kind><ext>.
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(cfg config.StorageConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, ErrDisabled
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioStore) Store(ctx context.Context, data []byte, accountID, conversationID string, kind conversation.ArtifactKind) (string, error) {
	if len(data) == 0 {
		return "", errors.New("storage: empty payload")
	}

	key := fmt.Sprintf("%s/%s/%s%s", accountID, conversationID, kind, extFor(kind))
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentTypeFor(kind),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", kind, err)
	}

	return fmt.Sprintf("%s/%s/%s", s.client.EndpointURL(), s.bucket, key), nil
}

func extFor(kind conversation.ArtifactKind) string {
	switch kind {
	case conversation.ArtifactTranscript:
		return ".json"
	case conversation.ArtifactReport:
		return ".pdf"
	case conversation.ArtifactAudio:
		return ".mp3"
	default:
		return ""
	}
}

func contentTypeFor(kind conversation.ArtifactKind) string {
	switch kind {
	case conversation.ArtifactTranscript:
		return "application/json"
	case conversation.ArtifactReport:
		return "application/pdf"
	case conversation.ArtifactAudio:
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
