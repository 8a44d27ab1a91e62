package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mozilla-ai/mcphub/internal/contracts"
	"github.com/mozilla-ai/mcphub/internal/domain"
	errorsint "github.com/mozilla-ai/mcphub/internal/errors"
	"github.com/mozilla-ai/mcphub/internal/files"
	"github.com/mozilla-ai/mcphub/internal/perms"
)

const metaSuffix = ".meta.json"

var _ contracts.FileStorage = (*Local)(nil)

// Local stores files in a directory, with a JSON sidecar per file holding its metadata.
type Local struct {
	root          string
	publicBaseURL string
}

type localMeta struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// NewLocal creates a Local store rooted at dir, creating the directory when needed.
func NewLocal(dir string, publicBaseURL string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory cannot be empty")
	}
	if err := files.EnsureAtLeastRegularDir(dir); err != nil {
		return nil, err
	}

	return &Local{root: dir, publicBaseURL: publicBaseURL}, nil
}

func (l *Local) Upload(ctx context.Context, r io.Reader, opts domain.UploadOptions) (domain.UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.UploadResult{}, err
	}

	filename := SanitizeFilename(opts.Filename)
	meta := localMeta{Filename: filename, ContentType: ResolveContentType(opts.ContentType, filename)}
	key := NewKey(filename)

	tmp, err := os.CreateTemp(l.root, ".upload-*")
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("%w: create temp file: %w", errorsint.ErrStorage, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	size, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("%w: write %s: %w", errorsint.ErrStorage, key, err)
	}
	if err := os.Chmod(tmp.Name(), perms.RegularFile); err != nil {
		return domain.UploadResult{}, fmt.Errorf("%w: chmod %s: %w", errorsint.ErrStorage, key, err)
	}

	b, err := json.Marshal(meta)
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("%w: encode metadata: %w", errorsint.ErrStorage, err)
	}
	if err := os.WriteFile(l.metaPath(key), b, perms.RegularFile); err != nil {
		return domain.UploadResult{}, fmt.Errorf("%w: write metadata %s: %w", errorsint.ErrStorage, key, err)
	}
	if err := os.Rename(tmp.Name(), l.path(key)); err != nil {
		_ = os.Remove(l.metaPath(key))
		return domain.UploadResult{}, fmt.Errorf("%w: store %s: %w", errorsint.ErrStorage, key, err)
	}

	now := time.Now().UTC()
	return domain.UploadResult{
		URL: l.PublicURL(key),
		Key: key,
		Metadata: domain.FileMetadata{
			Filename:     meta.Filename,
			ContentType:  meta.ContentType,
			Size:         size,
			LastModified: &now,
		},
	}, nil
}

func (l *Local) Download(_ context.Context, key string) (io.ReadCloser, error) {
	if !l.validKey(key) {
		return nil, fmt.Errorf("%w: invalid key '%s'", errorsint.ErrStorage, key)
	}

	f, err := os.Open(l.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", errorsint.ErrFileNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", errorsint.ErrStorage, key, err)
	}

	return f, nil
}

// Delete removes the file and its metadata. Deleting a missing key is not an error.
func (l *Local) Delete(_ context.Context, key string) error {
	if !l.validKey(key) {
		return fmt.Errorf("%w: invalid key '%s'", errorsint.ErrStorage, key)
	}

	for _, p := range []string{l.path(key), l.metaPath(key)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: delete %s: %w", errorsint.ErrStorage, key, err)
		}
	}

	return nil
}

func (l *Local) Exists(_ context.Context, key string) (bool, error) {
	if !l.validKey(key) {
		return false, nil
	}

	info, err := os.Stat(l.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %w", errorsint.ErrStorage, key, err)
	}

	return info.Mode().IsRegular(), nil
}

func (l *Local) Metadata(_ context.Context, key string) (domain.FileMetadata, error) {
	if !l.validKey(key) {
		return domain.FileMetadata{}, fmt.Errorf("%w: invalid key '%s'", errorsint.ErrStorage, key)
	}

	info, err := os.Stat(l.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.FileMetadata{}, fmt.Errorf("%w: %s", errorsint.ErrFileNotFound, key)
	}
	if err != nil {
		return domain.FileMetadata{}, fmt.Errorf("%w: stat %s: %w", errorsint.ErrStorage, key, err)
	}

	meta := localMeta{Filename: key}
	if b, err := os.ReadFile(l.metaPath(key)); err == nil {
		if err := json.Unmarshal(b, &meta); err != nil {
			return domain.FileMetadata{}, fmt.Errorf("%w: decode metadata %s: %w", errorsint.ErrStorage, key, err)
		}
	}
	meta.ContentType = ResolveContentType(meta.ContentType, meta.Filename)

	modified := info.ModTime().UTC()
	return domain.FileMetadata{
		Filename:     meta.Filename,
		ContentType:  meta.ContentType,
		Size:         info.Size(),
		LastModified: &modified,
	}, nil
}

func (l *Local) PublicURL(key string) string {
	return PublicURL(l.publicBaseURL, key)
}

// Root returns the directory holding stored files.
func (l *Local) Root() string {
	return l.root
}

// validKey rejects malformed keys and keys naming a metadata sidecar.
func (l *Local) validKey(key string) bool {
	return ValidKey(key) && !strings.HasSuffix(key, metaSuffix)
}

func (l *Local) path(key string) string {
	return filepath.Join(l.root, key)
}

func (l *Local) metaPath(key string) string {
	return filepath.Join(l.root, key+metaSuffix)
}
