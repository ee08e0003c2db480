// ABOUTME: Turns a full-resolution photo into a small JPEG data URL for FoodRecord.thumbnail.
// ABOUTME: Accepts data URLs or bare base64; scales the longest side down to MaxDimension.
package thumbnail

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	MaxDimension = 200
	Quality      = 50

	// maxPassthrough is the largest undecodable payload kept as-is.
	maxPassthrough = 64 * 1024
)

// ErrUndecodable means the input is neither a decodable image nor small enough to keep.
var ErrUndecodable = errors.New("undecodable image")

// Make returns a JPEG data URL no larger than MaxDimension on either side.
func Make(src string) (string, error) {
	payload := src
	if strings.HasPrefix(src, "data:") {
		comma := strings.IndexByte(src, ',')
		if comma < 0 {
			return "", fmt.Errorf("%w: malformed data URL", ErrUndecodable)
		}
		payload = src[comma+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUndecodable, err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		if len(src) <= maxPassthrough {
			return src, nil
		}
		return "", fmt.Errorf("%w: %w", ErrUndecodable, err)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, Scale(img, MaxDimension), &jpeg.Options{Quality: Quality}); err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(out.Bytes()), nil
}

// Scale fits img inside a bound x bound box, preserving aspect ratio. Images
// already inside the box are returned unchanged.
func Scale(img image.Image, bound int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= bound && h <= bound {
		return img
	}

	var nw, nh int
	if w >= h {
		nw, nh = bound, h*bound/w
	} else {
		nw, nh = w*bound/h, bound
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
