package auditarchive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"

	"github.com/localbiz/bizhub/app/models"
	"github.com/localbiz/bizhub/internal/pkg/env"
)

// objectAPI is the subset of *s3.Client the archive uses.
type objectAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client writes webhook ledger rows to S3 as immutable JSON documents.
type Client struct {
	s3Client objectAPI
	config   *Config
}

// UploadResult contains the result of a successful upload
type UploadResult struct {
	BucketName string
	ObjectKey  string
	Size       int64
}

// Document is the archived form of a webhook delivery.
type Document struct {
	ID             uint            `json:"id"`
	Gateway        string          `json:"gateway"`
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	Reference      string          `json:"reference"`
	SignatureValid bool            `json:"signature_valid"`
	Status         string          `json:"status"`
	ReceivedAt     time.Time       `json:"received_at"`
	ArchivedAt     time.Time       `json:"archived_at"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	RawPayload     string          `json:"raw_payload,omitempty"`
}

// NewClient creates a new S3 archive client
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("S3 audit archive is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3-compatible stores (MinIO, B2) need path-style URLs
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	client := newClient(s3Client, cfg)
	if err := client.testConnection(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to S3: %w", err)
	}

	log.Infof("[AuditArchive] Initialized S3 client for bucket: %s", cfg.BucketName)
	return client, nil
}

func newClient(api objectAPI, cfg *Config) *Client {
	return &Client{s3Client: api, config: cfg}
}

// testConnection checks the bucket exists, creating it outside production
func (c *Client) testConnection(ctx context.Context) error {
	_, err := c.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.config.BucketName),
	})
	if err == nil {
		return nil
	}
	if env.GetEnv("APP_ENV", "prod") == "prod" {
		return fmt.Errorf("bucket %s not accessible: %w", c.config.BucketName, err)
	}

	log.Warnf("[AuditArchive] Bucket %s not found, attempting to create it", c.config.BucketName)
	input := &s3.CreateBucketInput{Bucket: aws.String(c.config.BucketName)}
	if c.config.EndpointURL == "" && c.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.config.Region),
		}
	}
	if _, err := c.s3Client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", c.config.BucketName, err)
	}
	log.Infof("[AuditArchive] Created bucket: %s", c.config.BucketName)
	return nil
}

// ArchiveWebhook uploads one ledger row. Re-archiving the same row
// overwrites the same key.
func (c *Client) ArchiveWebhook(ctx context.Context, event *models.WebhookEvent) (*UploadResult, error) {
	doc := Document{
		ID:             event.ID,
		Gateway:        event.Gateway,
		EventID:        event.EventID,
		EventType:      event.EventType,
		Reference:      event.Reference,
		SignatureValid: event.SignatureValid,
		Status:         event.Status,
		ReceivedAt:     event.CreatedAt.UTC(),
		ArchivedAt:     time.Now().UTC(),
	}
	if json.Valid([]byte(event.Payload)) {
		doc.Payload = json.RawMessage(event.Payload)
	} else {
		doc.RawPayload = event.Payload
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode webhook %d: %w", event.ID, err)
	}

	key := c.config.ObjectKey(event.Gateway, event.ID, event.CreatedAt)
	_, err = c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.config.BucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
		Metadata: map[string]string{
			"gateway":       event.Gateway,
			"event-id":      event.EventID,
			"ledger-id":     strconv.FormatUint(uint64(event.ID), 10),
			"upload-source": "bizhub-webhook-audit",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Infof("[AuditArchive] Archived webhook %d to s3://%s/%s", event.ID, c.config.BucketName, key)
	return &UploadResult{BucketName: c.config.BucketName, ObjectKey: key, Size: int64(len(body))}, nil
}
