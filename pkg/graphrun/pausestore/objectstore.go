package pausestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/randalmurphal/graphrun/pkg/graphrun/config"
)

// ObjectStoreConfig configures an S3-compatible bucket for pause records.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
	// Prefix is prepended to every key. Defaults to "pauses".
	Prefix string
}

// ObjectStoreConfigFromEnv reads GRAPHRUN_PAUSE_S3_* variables.
func ObjectStoreConfigFromEnv() (ObjectStoreConfig, error) {
	useSSL, err := config.EnvBool("GRAPHRUN_PAUSE_S3_USE_SSL", false)
	if err != nil {
		return ObjectStoreConfig{}, err
	}
	cfg := ObjectStoreConfig{
		Endpoint:  config.EnvString("GRAPHRUN_PAUSE_S3_ENDPOINT", "localhost:9000"),
		AccessKey: config.EnvString("GRAPHRUN_PAUSE_S3_ACCESS_KEY", ""),
		SecretKey: config.EnvString("GRAPHRUN_PAUSE_S3_SECRET_KEY", ""),
		Region:    config.EnvString("GRAPHRUN_PAUSE_S3_REGION", "us-east-1"),
		UseSSL:    useSSL,
		Bucket:    config.EnvString("GRAPHRUN_PAUSE_S3_BUCKET", "graphrun"),
		Prefix:    config.EnvString("GRAPHRUN_PAUSE_S3_PREFIX", "pauses"),
	}
	if err := cfg.Validate(); err != nil {
		return ObjectStoreConfig{}, err
	}
	return cfg, nil
}

// Validate checks that the config names a reachable bucket.
func (c ObjectStoreConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Endpoint) == "" {
		errs = append(errs, errors.New("endpoint is required"))
	} else if strings.Contains(c.Endpoint, "://") {
		errs = append(errs, fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint))
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		errs = append(errs, errors.New("access key is required"))
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if strings.TrimSpace(c.Bucket) == "" {
		errs = append(errs, errors.New("bucket is required"))
	}
	return errors.Join(errs...)
}

// ObjectStore keeps one JSON object per pause under
// <prefix>/<run id>/<zero-padded sequence>.json, so a lexical listing of a
// run is in sequence order.
//
// Sequence assignment is serialized within one ObjectStore only; processes
// sharing a bucket must not save pauses for the same run concurrently.
type ObjectStore struct {
	client *minio.Client
	bucket string
	prefix string

	mu     sync.Mutex
	closed bool
}

var _ Repository = (*ObjectStore)(nil)

// NewObjectStore connects to the configured endpoint and creates the bucket
// if it does not exist.
func NewObjectStore(ctx context.Context, cfg ObjectStoreConfig) (*ObjectStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	if err := ensureBucket(ctx, client, cfg.Bucket, cfg.Region); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", cfg.Bucket, err)
	}
	return NewObjectStoreWithClient(client, cfg.Bucket, cfg.Prefix)
}

// NewObjectStoreWithClient uses an existing client and bucket.
func NewObjectStoreWithClient(client *minio.Client, bucket, prefix string) (*ObjectStore, error) {
	if client == nil {
		return nil, errors.New("minio client is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if prefix == "" {
		prefix = "pauses"
	}
	return &ObjectStore{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket, region string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// runPrefix returns the listing prefix of a run, with a trailing slash.
func (s *ObjectStore) runPrefix(runID string) string {
	return path.Join(s.prefix, runID) + "/"
}

// recordKey returns the object key of a run's pause.
func (s *ObjectStore) recordKey(runID string, seq int) string {
	return fmt.Sprintf("%s%010d.json", s.runPrefix(runID), seq)
}

// sequenceOf parses the sequence from a key built by recordKey.
func sequenceOf(key string) (int, bool) {
	name := path.Base(key)
	if !strings.HasSuffix(name, ".json") {
		return 0, false
	}
	seq, err := strconv.Atoi(strings.TrimSuffix(name, ".json"))
	if err != nil || seq < 1 {
		return 0, false
	}
	return seq, true
}

// listRun returns the run's objects in sequence order.
func (s *ObjectStore) listRun(ctx context.Context, runID string) ([]minio.ObjectInfo, error) {
	var objects []minio.ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.runPrefix(runID),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list pause records: %w", obj.Err)
		}
		if _, ok := sequenceOf(obj.Key); ok {
			objects = append(objects, obj)
		}
	}
	return objects, nil
}

func (s *ObjectStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Save implements Repository.
func (s *ObjectStore) Save(ctx context.Context, rec Record) (Info, error) {
	if err := rec.Validate(); err != nil {
		return Info{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Info{}, ErrStoreClosed
	}

	objects, err := s.listRun(ctx, rec.RunID)
	if err != nil {
		return Info{}, err
	}
	seq := 1
	if n := len(objects); n > 0 {
		last, _ := sequenceOf(objects[n-1].Key)
		seq = last + 1
	}

	rec, data, err := prepare(rec, seq, time.Now())
	if err != nil {
		return Info{}, err
	}
	if _, err := s.client.PutObject(ctx, s.bucket, s.recordKey(rec.RunID, seq),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"}); err != nil {
		return Info{}, fmt.Errorf("save pause record: %w", err)
	}
	return infoOf(rec, len(data)), nil
}

// Load implements Repository.
func (s *ObjectStore) Load(ctx context.Context, runID string) (Record, error) {
	if s.isClosed() {
		return Record{}, ErrStoreClosed
	}

	objects, err := s.listRun(ctx, runID)
	if err != nil {
		return Record{}, err
	}
	if len(objects) == 0 {
		return Record{}, ErrNotFound
	}

	obj, err := s.client.GetObject(ctx, s.bucket, objects[len(objects)-1].Key, minio.GetObjectOptions{})
	if err != nil {
		return Record{}, fmt.Errorf("load pause record: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return Record{}, fmt.Errorf("read pause record: %w", err)
	}
	return Unmarshal(data)
}

// List implements Repository. WorkflowID is not available from a listing
// and is left empty.
func (s *ObjectStore) List(ctx context.Context, runID string) ([]Info, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}

	objects, err := s.listRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(objects))
	for _, obj := range objects {
		seq, _ := sequenceOf(obj.Key)
		infos = append(infos, Info{
			RunID:     runID,
			Sequence:  seq,
			CreatedAt: obj.LastModified,
			Size:      obj.Size,
		})
	}
	return infos, nil
}

// DeleteRun implements Repository.
func (s *ObjectStore) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	objects, err := s.listRun(ctx, runID)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("delete pause record %s: %w", obj.Key, err)
		}
	}
	return nil
}

// Close implements Repository. The client holds no resources to release.
func (s *ObjectStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
