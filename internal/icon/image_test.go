package icon

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"
)

// encodePNG returns a PNG of the given size.
func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// TestImageSize tests decoding icon dimensions.
func TestImageSize(t *testing.T) {
	t.Parallel()

	t.Run("reports png dimensions", func(t *testing.T) {
		t.Parallel()

		size, err := ImageSize(encodePNG(t, 16, 24))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if size != "16x24" {
			t.Errorf("got %q, expected 16x24", size)
		}
	})

	t.Run("non-image body returns ErrDecode", func(t *testing.T) {
		t.Parallel()

		_, err := ImageSize([]byte("<html>not an image</html>"))
		if !errors.Is(err, ErrDecode) {
			t.Errorf("expected ErrDecode, got %v", err)
		}
	})

	t.Run("empty body returns ErrDecode", func(t *testing.T) {
		t.Parallel()

		_, err := ImageSize(nil)
		if !errors.Is(err, ErrDecode) {
			t.Errorf("expected ErrDecode, got %v", err)
		}
	})
}

// TestFormatSize tests size formatting.
func TestFormatSize(t *testing.T) {
	t.Parallel()

	if got := FormatSize(180, 180); got != "180x180" {
		t.Errorf("got %q, expected 180x180", got)
	}
}
