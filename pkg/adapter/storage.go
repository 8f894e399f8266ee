package adapter

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
)

// Storage is the interface for generated artifact storage
type Storage interface {
	// Put returns a writer to save an artifact. The artifact becomes visible
	// when the writer is closed.
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	// Get loads an artifact from storage
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// URI returns the location recorded for key in creation records
	URI(key string) string
}

// storageClient implements Storage interface using Cloud Storage
type storageClient struct {
	bucketName string
	prefix     string
	client     *storage.Client
}

// NewStorage creates a new Cloud Storage client. Objects are stored under
// prefix, which may be empty.
func NewStorage(ctx context.Context, bucketName, prefix string) (Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &storageClient{
		bucketName: bucketName,
		prefix:     strings.Trim(prefix, "/"),
		client:     client,
	}, nil
}

func (s *storageClient) object(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *storageClient) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	bucket := s.client.Bucket(s.bucketName)
	obj := bucket.Object(s.object(key))
	writer := obj.NewWriter(ctx)
	return writer, nil
}

func (s *storageClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	bucket := s.client.Bucket(s.bucketName)
	obj := bucket.Object(s.object(key))
	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.Value("key", key))
	}

	return reader, nil
}

func (s *storageClient) URI(key string) string {
	return "gs://" + s.bucketName + "/" + s.object(key)
}

// localStorage implements Storage on a local directory
type localStorage struct {
	root string
}

// NewLocalStorage stores artifacts as files under dir
func NewLocalStorage(dir string) (Storage, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve output directory", goerr.V("dir", dir))
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create output directory", goerr.V("dir", root))
	}
	return &localStorage{root: root}, nil
}

func (s *localStorage) path(key string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", goerr.New("artifact key escapes output directory", goerr.V("key", key))
	}
	return p, nil
}

// atomicFile writes to a temporary file and renames it into place on Close
type atomicFile struct {
	*os.File
	target string
}

func (f *atomicFile) Close() error {
	if err := f.File.Sync(); err != nil {
		_ = f.File.Close()
		_ = os.Remove(f.File.Name())
		return goerr.Wrap(err, "failed to sync artifact", goerr.V("path", f.target))
	}
	if err := f.File.Close(); err != nil {
		_ = os.Remove(f.File.Name())
		return goerr.Wrap(err, "failed to close artifact", goerr.V("path", f.target))
	}
	if err := os.Rename(f.File.Name(), f.target); err != nil {
		_ = os.Remove(f.File.Name())
		return goerr.Wrap(err, "failed to move artifact into place", goerr.V("path", f.target))
	}
	return nil
}

func (s *localStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create artifact directory", goerr.V("path", p))
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".*")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create artifact", goerr.V("path", p))
	}
	return &atomicFile{File: tmp, target: p}, nil
}

func (s *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, goerr.Wrap(err, "artifact not found", goerr.V("key", key))
		}
		return nil, goerr.Wrap(err, "failed to open artifact", goerr.V("key", key))
	}
	return f, nil
}

func (s *localStorage) URI(key string) string {
	p, err := s.path(key)
	if err != nil {
		return ""
	}
	return p
}
