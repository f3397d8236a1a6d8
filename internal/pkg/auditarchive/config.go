package auditarchive

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/localbiz/bizhub/internal/pkg/env"
)

// Config holds S3 audit archive configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Prefix          string
	Enabled         bool
}

// LoadConfig loads the archive configuration from S3_AUDIT_* variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_AUDIT_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_AUDIT_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_AUDIT_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_AUDIT_BUCKET", ""),
		EndpointURL:     env.GetEnv("S3_AUDIT_ENDPOINT_URL", ""),
		Prefix:          strings.Trim(env.GetEnv("S3_AUDIT_PREFIX", "webhooks"), "/"),
		Enabled:         env.GetBool("S3_AUDIT_ENABLED", false),
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_AUDIT_ACCESS_KEY_ID is required when the audit archive is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_AUDIT_SECRET_ACCESS_KEY is required when the audit archive is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_AUDIT_BUCKET is required when the audit archive is enabled")
		}
	}

	return config, nil
}

func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// ObjectKey returns <prefix>/<gateway>/YYYY/MM/<id>.json for a ledger row.
func (c *Config) ObjectKey(gateway string, id uint, receivedAt time.Time) string {
	prefix := c.Prefix
	if prefix == "" {
		prefix = "webhooks"
	}
	t := receivedAt.UTC()
	return fmt.Sprintf("%s/%s/%04d/%02d/%d.json", prefix, gateway, t.Year(), int(t.Month()), id)
}
