package capture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageBytes caps a captured image.
	MaxImageBytes = 10 << 20

	// ThumbnailSize is the longest side of a generated thumbnail.
	ThumbnailSize = 320
)

// Image is a decoded capture ready to become an image block.
type Image struct {
	// Content is the original bytes as a data URI.
	Content string
	// Thumbnail is a JPEG data URI no larger than ThumbnailSize.
	Thumbnail string
	Width     int
	Height    int
	Format    string
}

// ImageDataURI reads image bytes (png, jpeg, gif or webp) and returns the
// block content and a thumbnail. The mime type is sniffed from the bytes;
// whatever the client declared is ignored.
func ImageDataURI(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", MaxImageBytes)
	}

	mime := mimetype.Detect(data).String()
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("unsupported content type %s", mime)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := imaging.Fit(img, ThumbnailSize, ThumbnailSize, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	bounds := img.Bounds()
	return &Image{
		Content:   dataURI(mime, data),
		Thumbnail: dataURI("image/jpeg", buf.Bytes()),
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Format:    format,
	}, nil
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
