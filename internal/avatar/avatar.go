package avatar

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// MaxSize is the upload cap for avatar images.
const MaxSize = 2 << 20 // 2 MiB

// DefaultFilename is the shared placeholder asset; it is never deleted.
const DefaultFilename = "default.png"

// PublicPrefix is the URL prefix the avatar directory is served under.
const PublicPrefix = "/uploads/avatars"

var ErrNotImage = errors.New("only image files are allowed")
var ErrTooLarge = errors.New("image exceeds the maximum allowed size")

// Manager stores uploaded avatar images on local disk. File operations are
// best-effort and not transactional with the user record update.
type Manager struct {
	dir string
}

func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create avatars dir: %w", err)
	}

	return &Manager{dir: dir}, nil
}

func (m *Manager) Dir() string {
	return m.dir
}

// Save sniffs the content, enforces type and size limits, and writes the
// image under a collision-free name derived from the username and the
// current time. It returns the public path to store on the user record.
// Nothing is written when validation fails.
func (m *Manager) Save(src io.Reader, username, originalName, declaredType string) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)

	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read image: %w", err)
	}

	head = head[:n]

	if !isImage(declaredType, head) {
		return "", ErrNotImage
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	filename := fmt.Sprintf("%s-%d%s", username, time.Now().UnixMilli(), ext)
	dst := filepath.Join(m.dir, filename)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)

	if err != nil {
		return "", fmt.Errorf("create avatar file: %w", err)
	}

	written, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), io.LimitReader(src, MaxSize)))

	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("write avatar file: %w", err)
	}

	if written > MaxSize {
		_ = os.Remove(dst)
		return "", ErrTooLarge
	}

	return path.Join(PublicPrefix, filename), nil
}

// DeleteIfExists removes the file behind a stored public path. The shared
// default asset is never deleted and a missing file is not an error.
func (m *Manager) DeleteIfExists(profilePhoto string) error {
	if profilePhoto == "" {
		return nil
	}

	filename := path.Base(profilePhoto)

	if filename == DefaultFilename {
		return nil
	}

	err := os.Remove(filepath.Join(m.dir, filename))

	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

func isImage(declaredType string, head []byte) bool {
	if !strings.HasPrefix(strings.ToLower(declaredType), "image/") {
		return false
	}

	// don't trust the client header alone
	return strings.HasPrefix(http.DetectContentType(head), "image/")
}
