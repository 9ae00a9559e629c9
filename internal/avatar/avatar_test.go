package avatar_test

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"userhub/internal/avatar"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))

	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	return buf.Bytes()
}

func TestSaveAndDelete(t *testing.T) {
	m, err := avatar.NewManager(t.TempDir())

	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	publicPath, err := m.Save(bytes.NewReader(pngBytes(t)), "alice", "photo.png", "image/png")

	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if !strings.HasPrefix(publicPath, avatar.PublicPrefix+"/alice-") {
		t.Errorf("public path = %q", publicPath)
	}

	onDisk := filepath.Join(m.Dir(), path.Base(publicPath))

	if _, err := os.Stat(onDisk); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}

	if err := m.DeleteIfExists(publicPath); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := os.Stat(onDisk); !os.IsNotExist(err) {
		t.Error("file should be gone after delete")
	}

	// deleting again is a no-op
	if err := m.DeleteIfExists(publicPath); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestSaveRejectsNonImage(t *testing.T) {
	dir := t.TempDir()
	m, err := avatar.NewManager(dir)

	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	tests := []struct {
		name         string
		content      []byte
		declaredType string
	}{
		{
			name:         "text declared as text",
			content:      []byte("definitely not an image"),
			declaredType: "text/plain",
		},
		{
			name:         "text lying about its type",
			content:      []byte("<html>still not an image</html>"),
			declaredType: "image/png",
		},
		{
			name:         "image bytes with non-image declaration",
			content:      nil, // filled below
			declaredType: "application/octet-stream",
		},
	}

	tests[2].content = pngBytes(t)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Save(bytes.NewReader(tc.content), "bob", "f.bin", tc.declaredType)

			if err != avatar.ErrNotImage {
				t.Fatalf("err = %v, want ErrNotImage", err)
			}
		})
	}

	// nothing may be written on rejection
	entries, err := os.ReadDir(dir)

	if err != nil {
		t.Fatalf("readdir: %v", err)
	}

	if len(entries) != 0 {
		t.Errorf("rejected uploads left %d files behind", len(entries))
	}
}

func TestDeleteNeverTouchesDefault(t *testing.T) {
	dir := t.TempDir()
	m, err := avatar.NewManager(dir)

	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	defaultPath := filepath.Join(dir, avatar.DefaultFilename)

	if err := os.WriteFile(defaultPath, pngBytes(t), 0o644); err != nil {
		t.Fatalf("write default: %v", err)
	}

	if err := m.DeleteIfExists(path.Join(avatar.PublicPrefix, avatar.DefaultFilename)); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := os.Stat(defaultPath); err != nil {
		t.Error("default avatar must never be deleted")
	}
}

func TestDeleteIgnoresEmptyPath(t *testing.T) {
	m, err := avatar.NewManager(t.TempDir())

	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	if err := m.DeleteIfExists(""); err != nil {
		t.Fatalf("empty path should be a no-op, got %v", err)
	}
}
