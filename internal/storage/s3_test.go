package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentTypeForFile(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"photo.jpg", "image/jpeg"},
		{"photo.jpeg", "image/jpeg"},
		{"processed/batch-1/photo.JPG", "image/jpeg"},
		{"icon.png", "image/png"},
		{"banner.webp", "image/webp"},
		{"banner.avif", "image/avif"},
		{"scan.tiff", "image/tiff"},
		{"anim.gif", "image/gif"},
		{"logo.svg", "image/svg+xml"},
		{"archive.zip", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ContentTypeForFile(tt.path))
		})
	}
}

func TestObjectURL(t *testing.T) {
	url := ObjectURL("cdn.example.com", "processed/batch-1/photo.jpg")
	assert.Equal(t, "https://cdn.example.com/processed/batch-1/photo.jpg", url)
}
