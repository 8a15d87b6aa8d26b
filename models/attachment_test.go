package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		fileURL string
		text    string
		kind    ContentKind
	}{
		{"только URL", "https://files.example.com/report.pdf", "", KindFile},
		{"URL с подписью", "https://files.example.com/photo.jpg", "фото повреждения бампера", KindFileText},
		{"только текст", "", "когда будет готова машина?", KindText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire := EncodeContent(tt.fileURL, tt.text)
			c := DecodeContent(wire)

			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.fileURL, c.FileURL)
			assert.Equal(t, tt.text, c.Text)
		})
	}
}

func TestDecodeContentFileType(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://cdn.example.com/a.png", FileTypeImage},
		{"https://cdn.example.com/a.JPEG", FileTypeImage},
		{"https://cdn.example.com/a.webp?v=2", FileTypeImage},
		{"https://cdn.example.com/a.pdf", FileTypeGeneric},
		{"https://cdn.example.com/archive.zip", FileTypeGeneric},
	}
	for _, tt := range tests {
		c := DecodeContent(tt.url)
		require.Equal(t, KindFile, c.Kind, tt.url)
		assert.Equal(t, tt.want, c.FileType, tt.url)
	}
}

func TestDecodeContentPlainText(t *testing.T) {
	c := DecodeContent("посмотрите www.example.com без схемы")
	assert.Equal(t, KindText, c.Kind)
	assert.Empty(t, c.FileURL)
}

func TestAttachmentValidate(t *testing.T) {
	ok := SelectedAttachment{Filename: "a.png", Size: MaxAttachmentSize}
	assert.NoError(t, ok.Validate())

	tooBig := SelectedAttachment{Filename: "b.bin", Size: 12 << 20}
	err := tooBig.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAttachmentTooLarge)
	assert.True(t, strings.Contains(err.Error(), "10"))
}
