package dataset

import (
	"context"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"

	"github.com/sells-group/zipcode-cli/internal/model"
)

// ObjectReader opens an object in a bucket.
type ObjectReader interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// ObjectSource reads the dataset from object storage.
type ObjectSource struct {
	scheme string
	bucket string
	key    string
	format Format
	reader ObjectReader
}

// NewObjectSource creates an accessor for bucket/key. Scheme only labels the
// source ("s3", "minio").
func NewObjectSource(scheme, bucket, key string, format Format, reader ObjectReader) *ObjectSource {
	return &ObjectSource{scheme: scheme, bucket: bucket, key: key, format: format, reader: reader}
}

func (s *ObjectSource) Name() string { return s.scheme + "://" + s.bucket + "/" + s.key }

func (s *ObjectSource) Fetch(ctx context.Context) ([]model.Record, error) {
	body, err := s.reader.Open(ctx, s.bucket, s.key)
	if err != nil {
		return nil, unavailable(s.Name(), err)
	}
	defer body.Close() //nolint:errcheck

	records, err := Read(ctx, body, path.Base(s.key), s.format)
	if err != nil {
		return nil, unavailable(s.Name(), err)
	}
	return records, nil
}

// S3API is the subset of the S3 client used to read objects.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Reader opens objects through the AWS SDK.
type S3Reader struct {
	client S3API
}

// NewS3Reader wraps an S3 client.
func NewS3Reader(client S3API) *S3Reader {
	return &S3Reader{client: client}
}

func (r *S3Reader) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "s3: get object %s/%s", bucket, key)
	}
	return out.Body, nil
}

// S3Options configures the S3 client. An Endpoint switches to path-style
// addressing for S3-compatible stores.
type S3Options struct {
	Region   string
	Endpoint string
}

// NewS3Client builds an S3 client from the default AWS credential chain.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "s3: load aws config")
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// MinIOReader opens objects through the MinIO client.
type MinIOReader struct {
	client *minio.Client
}

// MinIOOptions configures the MinIO client.
type MinIOOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// NewMinIOReader connects a MinIO client with static credentials.
func NewMinIOReader(opts MinIOOptions) (*MinIOReader, error) {
	if opts.Endpoint == "" {
		return nil, eris.New("minio: endpoint is required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, eris.Wrap(err, "minio: new client")
	}
	return &MinIOReader{client: client}, nil
}

// Open stats the object first: GetObject is lazy and would only report a
// missing key on the first read.
func (r *MinIOReader) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if _, err := r.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return nil, eris.Errorf("minio: object %s/%s not found", bucket, key)
		}
		return nil, eris.Wrapf(err, "minio: stat %s/%s", bucket, key)
	}
	obj, err := r.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, eris.Wrapf(err, "minio: get object %s/%s", bucket, key)
	}
	return obj, nil
}
