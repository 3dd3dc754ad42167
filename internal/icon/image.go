package icon

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder, registered for image.DecodeConfig
	_ "image/jpeg" // JPEG decoder, registered for image.DecodeConfig
	_ "image/png"  // PNG decoder, registered for image.DecodeConfig
)

// ErrDecode is returned when an icon body cannot be decoded as an image.
var ErrDecode = errors.New("cannot decode icon image")

// ImageSize decodes the image header in body and returns its pixel
// dimensions formatted as "WxH".
//
// Design decision: We use image.DecodeConfig rather than image.Decode
// because only the dimensions are needed; the pixel buffer is never
// allocated.
func ImageSize(body []byte) (string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return FormatSize(cfg.Width, cfg.Height), nil
}

// FormatSize formats dimensions the way the sizes attribute declares them.
func FormatSize(width, height int) string {
	return fmt.Sprintf("%dx%d", width, height)
}
