package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/zeebo/blake3"

	"arclight-go/internal/arclight"
	"arclight-go/internal/config"
	"arclight-go/internal/wallet"
)

// S3API is the subset of the S3 client the ledger uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Uploader streams payloads, splitting large ones into multipart uploads.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Ledger stores records in a bucket:
//
//	<prefix>data/<id>                 payload
//	<prefix>meta/<id>.cbor            owner, tags and size
//	<prefix>tag/<name>/<value>/<id>   empty marker per tag
//	<prefix>owner/<address>/<id>      empty marker per owner
//
// Markers are written last, so queries only find complete records. Tag names
// and values are path-escaped; overlong ones are replaced by their digest.
type S3Ledger struct {
	client   S3API
	uploader Uploader
	bucket   string
	prefix   string
	anchors  arclight.IDGenerator
}

// NewS3Ledger creates a ledger over an existing client and uploader.
func NewS3Ledger(client S3API, uploader Uploader, bucket, prefix string, anchors arclight.IDGenerator) *S3Ledger {
	return &S3Ledger{
		client:   client,
		uploader: uploader,
		bucket:   bucket,
		prefix:   prefix,
		anchors:  anchors,
	}
}

// NewS3LedgerFromConfig builds the AWS client from cfg. Static credentials
// are used when both key fields are set; otherwise the default chain applies.
func NewS3LedgerFromConfig(ctx context.Context, cfg config.LedgerConfig, anchors arclight.IDGenerator) (*S3Ledger, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3PathStyle
	})
	partSize := max(cfg.ChunkSize, manager.MinUploadPartSize)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
	})
	return NewS3Ledger(client, uploader, cfg.S3Bucket, cfg.S3Prefix, anchors), nil
}

func (l *S3Ledger) DeriveAddress(key arclight.Key) (arclight.Address, error) {
	return wallet.Address(key)
}

func (l *S3Ledger) Submit(ctx context.Context, rec *arclight.UnsignedRecord, key arclight.Key, progress func(int)) (arclight.RecordID, error) {
	if err := checkRecord(rec); err != nil {
		return "", err
	}
	owner, err := l.DeriveAddress(key)
	if err != nil {
		return "", err
	}
	id, err := recordID(owner, rec, l.anchors.New())
	if err != nil {
		return "", err
	}

	body := &progressReader{r: bytes.NewReader(rec.Payload), total: int64(len(rec.Payload)), progress: progress}
	body.report(0)
	_, err = l.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(l.dataKey(id)),
		Body:   body,
	})
	if err != nil {
		return "", classify("uploading record data", err)
	}
	body.report(100)

	meta, err := marshalMeta(&arclight.RecordMeta{ID: id, Owner: owner, Tags: rec.Tags, Size: int64(len(rec.Payload))})
	if err != nil {
		return "", err
	}
	if err := l.put(ctx, l.metaKey(id), meta); err != nil {
		return "", classify("writing record metadata", err)
	}

	for _, t := range rec.Tags {
		if err := l.put(ctx, l.tagPrefix(t.Name, t.Value)+string(id), nil); err != nil {
			return "", classify("indexing record", err)
		}
	}
	if err := l.put(ctx, l.tagPrefix(arclight.FromKey, string(owner))+string(id), nil); err != nil {
		return "", classify("indexing record owner", err)
	}
	return id, nil
}

func (l *S3Ledger) FetchRecord(ctx context.Context, id arclight.RecordID) (*arclight.RecordMeta, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %q", arclight.ErrNotFound, id)
	}
	b, err := l.get(ctx, l.metaKey(id))
	if err != nil {
		return nil, notFoundOr(id, classify("fetching record", err))
	}
	return unmarshalMeta(b)
}

func (l *S3Ledger) FetchRecordData(ctx context.Context, id arclight.RecordID) ([]byte, error) {
	if _, err := l.FetchRecord(ctx, id); err != nil {
		return nil, err
	}
	b, err := l.get(ctx, l.dataKey(id))
	if err != nil {
		return nil, notFoundOr(id, classify("fetching record data", err))
	}
	return b, nil
}

// Query evaluates q over the marker objects.
func (l *S3Ledger) Query(ctx context.Context, q *arclight.Predicate) ([]arclight.RecordID, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", arclight.ErrLedgerRejected, err)
	}
	set, err := q.Eval(func(key, value string) (arclight.IDSet, error) {
		return l.list(ctx, l.tagPrefix(key, value))
	})
	if err != nil {
		return nil, classify("querying", err)
	}
	ids := make([]arclight.RecordID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids, nil
}

func (l *S3Ledger) list(ctx context.Context, prefix string) (arclight.IDSet, error) {
	set := arclight.IDSet{}
	p := s3.NewListObjectsV2Paginator(l.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(l.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			id := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if id != "" && !strings.Contains(id, "/") {
				set[arclight.RecordID(id)] = struct{}{}
			}
		}
	}
	return set, nil
}

func (l *S3Ledger) put(ctx context.Context, key string, data []byte) error {
	_, err := l.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(l.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	return err
}

func (l *S3Ledger) get(ctx context.Context, key string) ([]byte, error) {
	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (l *S3Ledger) dataKey(id arclight.RecordID) string { return l.prefix + "data/" + string(id) }

func (l *S3Ledger) metaKey(id arclight.RecordID) string {
	return l.prefix + "meta/" + string(id) + metaSuffix
}

func (l *S3Ledger) tagPrefix(name, value string) string {
	if name == arclight.FromKey {
		return l.prefix + "owner/" + segment(value) + "/"
	}
	return l.prefix + "tag/" + segment(name) + "/" + segment(value) + "/"
}

// maxSegment keeps marker keys well inside the 1024 byte S3 key limit.
const maxSegment = 256

// segment path-escapes s, replacing values too long for a key with a digest.
func segment(s string) string {
	escaped := url.PathEscape(s)
	if len(escaped) <= maxSegment {
		return escaped
	}
	sum := blake3.Sum256([]byte(s))
	return "~" + base64.RawURLEncoding.EncodeToString(sum[:])
}

// classify maps S3 failures onto ledger errors: client faults are
// rejections, everything else is unavailability.
func classify(op string, err error) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultClient {
		return fmt.Errorf("%s: %w: %w", op, arclight.ErrLedgerRejected, err)
	}
	return unavailable(op, err)
}

func notFoundOr(id arclight.RecordID, err error) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %s", arclight.ErrNotFound, id)
	}
	return err
}

// progressReader reports the share of the payload read by the uploader.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	last     int
	progress func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 && n > 0 {
		p.report(int(p.read * 100 / p.total))
	}
	return n, err
}

func (p *progressReader) report(pct int) {
	if p.progress == nil || (pct == p.last && pct != 0) {
		return
	}
	p.last = pct
	p.progress(pct)
}

// Compile-time check that S3Ledger implements arclight.Ledger
var _ arclight.Ledger = (*S3Ledger)(nil)
