package adapter

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Storage is the interface for exported session storage
type Storage interface {
	// Put returns a writer to save an object. Data is committed on Close.
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	// Get opens an object. A missing object reports model.ErrNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns keys under prefix in lexical order
	List(ctx context.Context, prefix string) ([]string, error)
}

// NewStorageFromURL opens Cloud Storage for gs://bucket[/prefix] URLs and a
// local directory otherwise
func NewStorageFromURL(ctx context.Context, url string, opts ...option.ClientOption) (Storage, error) {
	if rest, ok := strings.CutPrefix(url, "gs://"); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return nil, goerr.New("bucket name is missing", goerr.V("url", url))
		}
		return NewStorage(ctx, bucket, prefix, opts...)
	}
	return NewFileStorage(url)
}

// storageClient implements Storage interface using Cloud Storage
type storageClient struct {
	bucketName string
	prefix     string
	client     *storage.Client
}

// NewStorage creates a new Cloud Storage client. Keys are placed under prefix.
func NewStorage(ctx context.Context, bucketName, prefix string, opts ...option.ClientOption) (Storage, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &storageClient{
		bucketName: bucketName,
		prefix:     strings.Trim(prefix, "/"),
		client:     client,
	}, nil
}

func (s *storageClient) objectName(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *storageClient) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	obj := s.client.Bucket(s.bucketName).Object(s.objectName(key))
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"
	return writer, nil
}

func (s *storageClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj := s.client.Bucket(s.bucketName).Object(s.objectName(key))
	reader, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, goerr.Wrap(model.ErrNotFound, "object does not exist", goerr.V("key", key), goerr.V("bucket", s.bucketName))
		}
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.V("key", key))
	}

	return reader, nil
}

func (s *storageClient) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.client.Bucket(s.bucketName).Objects(ctx, &storage.Query{
		Prefix: s.objectName(prefix),
	})

	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list objects", goerr.V("prefix", prefix))
		}

		key := attrs.Name
		if s.prefix != "" {
			key = strings.TrimPrefix(key, s.prefix+"/")
		}
		keys = append(keys, key)
	}

	sort.Strings(keys)
	return keys, nil
}

// fileStorage implements Storage on a local directory
type fileStorage struct {
	root string
}

// NewFileStorage stores objects as files under dir
func NewFileStorage(dir string) (Storage, error) {
	if dir == "" {
		return nil, goerr.New("storage directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create storage directory", goerr.V("dir", dir))
	}
	return &fileStorage{root: dir}, nil
}

func (s *fileStorage) filePath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", goerr.New("invalid storage key", goerr.V("key", key))
	}
	return filepath.Join(s.root, clean), nil
}

func (s *fileStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	p, err := s.filePath(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create directory", goerr.V("key", key))
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create file", goerr.V("key", key))
	}
	return &fileWriter{File: tmp, dst: p}, nil
}

// fileWriter renames the temporary file into place on Close
type fileWriter struct {
	*os.File
	dst string
}

func (w *fileWriter) Close() error {
	if err := w.File.Close(); err != nil {
		return goerr.Wrap(err, "failed to close file", goerr.V("path", w.dst))
	}
	if err := os.Rename(w.Name(), w.dst); err != nil {
		return goerr.Wrap(err, "failed to commit file", goerr.V("path", w.dst))
	}
	return nil
}

func (s *fileStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.filePath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, goerr.Wrap(model.ErrNotFound, "object does not exist", goerr.V("key", key))
		}
		return nil, goerr.Wrap(err, "failed to open file", goerr.V("key", key))
	}
	return f, nil
}

func (s *fileStorage) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".put-") {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list files", goerr.V("prefix", prefix))
	}

	sort.Strings(keys)
	return keys, nil
}
