package sink

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/account-linker/internal/model"
	"github.com/sells-group/account-linker/internal/resilience"
)

// ObjectAPI is the slice of the S3 client used by the mirror.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config configures the S3 mirror.
type S3Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // optional, e.g. MinIO
}

// NewS3Client builds an S3 client from the default AWS credential chain.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, eris.Wrap(err, "sink: load aws config")
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Mirror writes tables through a local ParquetWriter and uploads the
// resulting files under bucket/prefix.
type S3Mirror struct {
	local  *ParquetWriter
	client ObjectAPI
	bucket string
	prefix string
	retry  resilience.Policy
	log    *zap.Logger
}

// MirrorOption configures an S3Mirror.
type MirrorOption func(*S3Mirror)

// WithUploadRetry overrides the retry policy for uploads.
func WithUploadRetry(p resilience.Policy) MirrorOption {
	return func(m *S3Mirror) { m.retry = p }
}

// NewS3Mirror creates a mirror that uploads the files produced by local.
// Transient upload failures are retried with resilience.DefaultPolicy.
func NewS3Mirror(local *ParquetWriter, client ObjectAPI, bucket, prefix string, opts ...MirrorOption) *S3Mirror {
	m := &S3Mirror{
		local:  local,
		client: client,
		bucket: bucket,
		prefix: prefix,
		retry:  resilience.DefaultPolicy(),
		log:    zap.L().With(zap.String("component", "sink.s3")),
	}
	for _, o := range opts {
		o(m)
	}
	if m.retry.OnRetry == nil {
		m.retry.OnRetry = resilience.Logger("sink.s3", "put_object")
	}
	return m
}

// Write implements Writer. The local outputs are returned followed by one
// entry per uploaded object. If an upload fails, the objects already uploaded
// and the local files are removed.
func (m *S3Mirror) Write(ctx context.Context, t Tables) ([]model.TableOutput, error) {
	outputs, err := m.local.Write(ctx, t)
	if err != nil {
		return nil, err
	}

	uploaded := make([]model.TableOutput, 0, len(outputs))
	for _, out := range outputs {
		key, err := m.upload(ctx, out.Location)
		if err != nil {
			if derr := m.Discard(context.WithoutCancel(ctx), append(outputs, uploaded...)); derr != nil {
				m.log.Warn("sink: discard partial upload", zap.Error(derr))
			}
			return nil, err
		}
		uploaded = append(uploaded, model.TableOutput{
			Table:    out.Table,
			Records:  out.Records,
			Location: m.location(key),
		})
	}
	return append(outputs, uploaded...), nil
}

// Discard implements Discarder: it deletes the mirror's objects and the
// local files behind them.
func (m *S3Mirror) Discard(ctx context.Context, outputs []model.TableOutput) error {
	var local []model.TableOutput
	for _, o := range outputs {
		key, ok := strings.CutPrefix(o.Location, m.location(""))
		if !ok {
			local = append(local, o)
			continue
		}
		_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return eris.Wrapf(err, "sink: delete %s", o.Location)
		}
		m.log.Info("deleted table object", zap.String("bucket", m.bucket), zap.String("key", key))
	}
	return m.local.Discard(ctx, local)
}

func (m *S3Mirror) location(key string) string {
	return "s3://" + m.bucket + "/" + key
}

func (m *S3Mirror) upload(ctx context.Context, file string) (string, error) {
	key := path.Join(m.prefix, filepath.Base(file))
	err := resilience.Do(ctx, m.retry, func(ctx context.Context) error {
		// Each attempt needs a fresh body.
		f, err := os.Open(file)
		if err != nil {
			return eris.Wrapf(err, "sink: open %s", file)
		}
		defer f.Close() //nolint:errcheck

		_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(m.bucket),
			Key:         aws.String(key),
			Body:        f,
			ContentType: aws.String("application/vnd.apache.parquet"),
		})
		return err
	})
	if err != nil {
		return "", eris.Wrapf(err, "sink: put s3://%s/%s", m.bucket, key)
	}
	m.log.Info("uploaded table", zap.String("bucket", m.bucket), zap.String("key", key))
	return key, nil
}
