// Package publish uploads report artifacts to S3-compatible object storage
// (AWS S3, MinIO, R2).
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

var ErrTarget = errors.New("invalid publish target")

// PutObjectAPI is the part of the S3 client the publisher needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Target is a parsed s3://bucket/prefix location.
type Target struct {
	Bucket string
	Prefix string
}

func (t Target) String() string {
	if t.Prefix == "" {
		return "s3://" + t.Bucket
	}
	return "s3://" + t.Bucket + "/" + t.Prefix
}

// Key joins the prefix and a slash-separated relative path.
func (t Target) Key(rel string) string {
	return strings.TrimLeft(path.Join(t.Prefix, rel), "/")
}

func ParseTarget(raw string) (Target, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Target{}, fmt.Errorf("%w %q: %v", ErrTarget, raw, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return Target{}, fmt.Errorf("%w %q: want s3://bucket/prefix", ErrTarget, raw)
	}
	return Target{Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
}

// S3Options configures NewS3Client. Key and Secret select static
// credentials, required by most S3-compatible stores; otherwise the default
// AWS credential chain is used.
type S3Options struct {
	Region   string
	Endpoint string
	Key      string
	Secret   string
}

func NewS3Client(ctx context.Context, o S3Options) (*s3.Client, error) {
	region := o.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(region)}
	if o.Key != "" && o.Secret != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.Key, o.Secret, ""),
		))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("publish: load aws config: %w", err)
	}
	var clientOpts []func(*s3.Options)
	if o.Endpoint != "" {
		clientOpts = append(clientOpts, func(so *s3.Options) {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(cfg, clientOpts...), nil
}

type Publisher struct {
	api    PutObjectAPI
	target Target
	log    zerolog.Logger
}

func New(api PutObjectAPI, target Target, log zerolog.Logger) *Publisher {
	return &Publisher{api: api, target: target, log: log}
}

// PublishDir uploads every regular file under dir, keeping its relative
// path below the target prefix. It returns the uploaded keys in walk order.
func (p *Publisher) PublishDir(ctx context.Context, dir string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(dir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		key := p.target.Key(filepath.ToSlash(rel))
		if err := p.put(ctx, file, key); err != nil {
			return err
		}
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return keys, err
	}
	p.log.Info().Str("target", p.target.String()).Int("files", len(keys)).Msg("reports published")
	return keys, nil
}

func (p *Publisher) put(ctx context.Context, file, key string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	ct := mime.TypeByExtension(filepath.Ext(file))
	if ct == "" {
		ct = "application/octet-stream"
	}
	_, err = p.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.target.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ct),
	})
	if err != nil {
		return fmt.Errorf("publish: put %s: %w", key, err)
	}
	p.log.Debug().Str("key", key).Int("bytes", len(data)).Msg("uploaded")
	return nil
}
