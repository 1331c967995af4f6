// Package recording resolves call recording tokens to presigned S3 URLs.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	minTTL = time.Second
	maxTTL = 7 * 24 * time.Hour
)

// ErrRecordingNotFound is returned when no object exists for a recording token.
var ErrRecordingNotFound = errors.New("recording not found")

// InvalidTTLError is returned for expiry requests outside the signable range.
type InvalidTTLError struct {
	TTL time.Duration
}

func (e *InvalidTTLError) Error() string {
	return fmt.Sprintf("invalid recording url ttl %s: must be between %s and %s", e.TTL, minTTL, maxTTL)
}

// Location holds presigned access URLs for a single recording object. The
// retrieval URL streams the recording inline; the download URL carries a
// content-disposition header so browsers save it as a file.
type Location struct {
	RetrievalURL string    `json:"retrieval_url"`
	DownloadURL  string    `json:"download_url"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type objectHeader interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type getPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4PresignedRequest, error)
}

// v4PresignedRequest mirrors the fields of the SDK's presigned request that
// the locator consumes.
type v4PresignedRequest struct {
	URL string
}

// sdkPresigner adapts s3.PresignClient to the getPresigner interface.
type sdkPresigner struct {
	client *s3.PresignClient
}

func (p *sdkPresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4PresignedRequest, error) {
	req, err := p.client.PresignGetObject(ctx, in, optFns...)
	if err != nil {
		return nil, err
	}
	return &v4PresignedRequest{URL: req.URL}, nil
}

// Locator signs time-limited retrieval URLs for recording objects in S3.
type Locator struct {
	header    objectHeader
	presigner getPresigner
	bucket    string
	prefix    string
	logger    *slog.Logger
	now       func() time.Time
}

// NewLocator builds a Locator against live S3 using the default AWS
// credential chain.
func NewLocator(ctx context.Context, bucket, region, prefix string, logger *slog.Logger) (*Locator, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &Locator{
		header:    client,
		presigner: &sdkPresigner{client: s3.NewPresignClient(client)},
		bucket:    bucket,
		prefix:    prefix,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Locate verifies the recording object exists and returns presigned URLs
// valid for ttl. Tokens map to objects as <prefix>/<token>.mp4.
func (l *Locator) Locate(ctx context.Context, token string, ttl time.Duration) (Location, error) {
	if ttl < minTTL || ttl > maxTTL {
		return Location{}, &InvalidTTLError{TTL: ttl}
	}
	if token == "" {
		return Location{}, ErrRecordingNotFound
	}

	key := l.objectKey(token)
	_, err := l.header.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return Location{}, ErrRecordingNotFound
		}
		return Location{}, fmt.Errorf("checking recording %s: %w", key, err)
	}

	expires := func(o *s3.PresignOptions) { o.Expires = ttl }

	retrieval, err := l.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	}, expires)
	if err != nil {
		return Location{}, fmt.Errorf("signing retrieval url for %s: %w", key, err)
	}

	download, err := l.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(l.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", token+".mp4")),
	}, expires)
	if err != nil {
		return Location{}, fmt.Errorf("signing download url for %s: %w", key, err)
	}

	l.logger.Debug("located recording", "key", key, "ttl", ttl.String())
	return Location{
		RetrievalURL: retrieval.URL,
		DownloadURL:  download.URL,
		ExpiresAt:    l.now().UTC().Add(ttl),
	}, nil
}

func (l *Locator) objectKey(token string) string {
	if l.prefix == "" {
		return token + ".mp4"
	}
	return l.prefix + "/" + token + ".mp4"
}
