// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pdiddy/reaction-engine/pkg/types"
)

// objectAPI is the subset of object storage operations the store needs.
// It is satisfied by minioObjects in production and by fakes in tests.
type objectAPI interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// errNoSuchKey is returned by objectAPI implementations for missing keys.
var errNoSuchKey = errors.New("no such key")

// MinIOStore keeps checkpoints in an S3-compatible bucket using the same
// layout as FSStore under an optional key prefix. The manifest object is
// uploaded last.
type MinIOStore struct {
	objects objectAPI
	prefix  string
	codec   *codec
	exports []types.ExportFormat
}

// OpenMinIO connects to the object store described by cfg and creates the
// bucket when it does not exist.
func OpenMinIO(ctx context.Context, cfg types.ObjectStoreConfig, compression int, exports []types.ExportFormat) (*MinIOStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("object store endpoint and bucket are required")
	}
	c, err := newCodec(compression)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating object store client: %w", err)
	}
	if err := ensureBucket(ctx, client, cfg.Bucket, cfg.Region); err != nil {
		return nil, fmt.Errorf("ensuring bucket %s: %w", cfg.Bucket, err)
	}
	return newMinIOStore(&minioObjects{client: client, bucket: cfg.Bucket}, cfg.Prefix, c, exports), nil
}

func newMinIOStore(objects objectAPI, prefix string, c *codec, exports []types.ExportFormat) *MinIOStore {
	return &MinIOStore{
		objects: objects,
		prefix:  strings.Trim(prefix, "/"),
		codec:   c,
		exports: exports,
	}
}

func (s *MinIOStore) Close() error { return nil }

func (s *MinIOStore) key(parts ...string) string {
	if s.prefix != "" {
		parts = append([]string{s.prefix}, parts...)
	}
	return path.Join(parts...)
}

func (s *MinIOStore) manifestKey(id string) string {
	return s.key(id + manifestSuffix)
}

func (s *MinIOStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := ValidateID(id); err != nil {
		return false, err
	}
	ok, err := s.objects.Exists(ctx, s.manifestKey(id))
	if err != nil {
		return false, fmt.Errorf("checking checkpoint %s: %w", id, err)
	}
	return ok, nil
}

func (s *MinIOStore) Save(ctx context.Context, id string, state *types.SystemState, meta types.CheckpointMeta) (types.Checkpoint, error) {
	if err := ValidateID(id); err != nil {
		return types.Checkpoint{}, err
	}
	payload, sum, err := s.codec.encode(id, state)
	if err != nil {
		return types.Checkpoint{}, err
	}
	folder, stem := splitID(id)
	prev, prevErr := s.Stat(ctx, id)

	payloadKey := s.key(folder, payloadName(stem, sum))
	if err := s.objects.Put(ctx, payloadKey, payload, "application/zstd"); err != nil {
		return types.Checkpoint{}, &PersistenceError{ID: id, Op: "save", Err: err}
	}
	exports, err := renderExports(stem, state, s.exports)
	if err != nil {
		return types.Checkpoint{}, err
	}
	for _, e := range exports {
		if err := s.objects.Put(ctx, s.key(folder, e.name), e.data, contentType(e.name)); err != nil {
			return types.Checkpoint{}, &PersistenceError{ID: id, Op: "save", Err: err}
		}
	}

	cp := manifest(id, state, meta, sum, len(payload))
	cp.Exports = exportNames(exports)
	data, err := marshalManifest(cp)
	if err != nil {
		return types.Checkpoint{}, err
	}
	if err := s.objects.Put(ctx, s.manifestKey(id), data, "application/yaml"); err != nil {
		return types.Checkpoint{}, &PersistenceError{ID: id, Op: "publish", Err: err}
	}

	if prevErr == nil && prev.SHA256 != sum {
		s.objects.Remove(ctx, s.key(folder, payloadName(stem, prev.SHA256)))
	}
	return cp, nil
}

func (s *MinIOStore) Stat(ctx context.Context, id string) (types.Checkpoint, error) {
	if err := ValidateID(id); err != nil {
		return types.Checkpoint{}, err
	}
	data, err := s.objects.Get(ctx, s.manifestKey(id))
	if errors.Is(err, errNoSuchKey) {
		return types.Checkpoint{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return types.Checkpoint{}, fmt.Errorf("reading manifest %s: %w", id, err)
	}
	return unmarshalManifest(id, data)
}

func (s *MinIOStore) Load(ctx context.Context, id string) (*types.SystemState, error) {
	cp, err := s.Stat(ctx, id)
	if err != nil {
		return nil, err
	}
	folder, stem := splitID(id)
	payload, err := s.objects.Get(ctx, s.key(folder, payloadName(stem, cp.SHA256)))
	if errors.Is(err, errNoSuchKey) {
		return nil, &CorruptionError{ID: id, Err: fmt.Errorf("payload object missing")}
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint %s: %w", id, err)
	}
	return s.codec.decode(id, payload, cp.SHA256)
}

func (s *MinIOStore) List(ctx context.Context) ([]types.Checkpoint, error) {
	root := ""
	if s.prefix != "" {
		root = s.prefix + "/"
	}
	keys, err := s.objects.Keys(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("listing checkpoints: %w", err)
	}
	var out []types.Checkpoint
	for _, k := range keys {
		if !strings.HasSuffix(k, manifestSuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(k, root), manifestSuffix)
		cp, err := s.Stat(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MinIOStore) Delete(ctx context.Context, id string) error {
	cp, err := s.Stat(ctx, id)
	if err != nil {
		return err
	}
	if err := s.objects.Remove(ctx, s.manifestKey(id)); err != nil {
		return &PersistenceError{ID: id, Op: "delete", Err: err}
	}
	folder, stem := splitID(id)
	s.objects.Remove(ctx, s.key(folder, payloadName(stem, cp.SHA256)))
	for _, name := range cp.Exports {
		s.objects.Remove(ctx, s.key(folder, name))
	}
	return nil
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".png":
		return "image/png"
	case ".csv":
		return "text/csv"
	default:
		return "chemical/x-" + strings.TrimPrefix(path.Ext(name), ".")
	}
}

// minioObjects adapts a minio client and bucket to objectAPI.
type minioObjects struct {
	client *minio.Client
	bucket string
}

func (m *minioObjects) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, err
}

func (m *minioObjects) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (m *minioObjects) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, errNoSuchKey
		}
		return nil, err
	}
	return data, nil
}

func (m *minioObjects) Remove(ctx context.Context, key string) error {
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}

func (m *minioObjects) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
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
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
