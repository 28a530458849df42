package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Config struct {
	Bucket          string        `split_words:"true"`
	Region          string        `split_words:"true" default:"us-east-1"`
	Endpoint        string        `split_words:"true"`
	AccessKeyID     string        `split_words:"true"`
	SecretAccessKey string        `split_words:"true"`
	SessionToken    string        `split_words:"true"`
	Prefix          string        `split_words:"true" default:"flights"`
	PresignTTL      time.Duration `split_words:"true" default:"24h"`
	UsePathStyle    bool          `split_words:"true"`
}

type S3Option func(*s3.Options)

func WithS3HTTPClient(client s3.HTTPClient) S3Option {
	return func(o *s3.Options) {
		if client != nil {
			o.HTTPClient = client
		}
	}
}

// S3Store uploads objects and links them with presigned GET URLs.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
	ttl     time.Duration
	now     func() time.Time
}

var _ Store = (*S3Store)(nil)

func NewS3Store(cfg S3Config, opts ...S3Option) (*S3Store, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if strings.TrimSpace(cfg.AccessKeyID) == "" || strings.TrimSpace(cfg.SecretAccessKey) == "" {
		return nil, errors.New("s3 credentials are required")
	}
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	creds := aws.Credentials{
		AccessKeyID:     strings.TrimSpace(cfg.AccessKeyID),
		SecretAccessKey: strings.TrimSpace(cfg.SecretAccessKey),
		SessionToken:    strings.TrimSpace(cfg.SessionToken),
		Source:          "filestore",
	}
	o := s3.Options{
		Region: strings.TrimSpace(cfg.Region),
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return creds, nil
		})),
		UsePathStyle: cfg.UsePathStyle,
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		o.BaseEndpoint = aws.String(endpoint)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	client := s3.New(o)
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		prefix:  strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

func (s *S3Store) key(f File) string {
	return path.Join(s.prefix, f.ID, f.Name)
}

func (s *S3Store) Put(ctx context.Context, name string, mimeType string, data []byte) (File, error) {
	f, err := newFile(name, mimeType, data, s.now())
	if err != nil {
		return File{}, err
	}
	key := s.key(f)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(data),
		ContentType:        aws.String(f.MimeType),
		ContentDisposition: aws.String(mime.FormatMediaType("inline", map[string]string{"filename": f.Name})),
	})
	if err != nil {
		return File{}, fmt.Errorf("put object %s: %w", key, err)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return File{}, fmt.Errorf("presign object %s: %w", key, err)
	}
	f.URI = req.URL
	return f, nil
}
