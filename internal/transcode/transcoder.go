// Package transcode re-encodes images to a target format, quality and size.
package transcode

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Format is the closed set of image formats the service knows about.
// Parsing an unknown format string fails up front, so a bad format is a
// submission-time error rather than a silent fallback mid-batch.
type Format int

const (
	FormatJPEG Format = iota
	FormatPNG
	FormatWebP
	FormatAVIF
	FormatTIFF
	FormatGIF
	FormatBMP
)

const DefaultQuality = 80

var ErrSourceUnreadable = errors.New("source image is not readable")

func ParseFormat(s string) (Format, error) {
	switch s {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	case "avif":
		return FormatAVIF, nil
	case "tiff":
		return FormatTIFF, nil
	case "gif":
		return FormatGIF, nil
	case "bmp":
		return FormatBMP, nil
	default:
		return 0, fmt.Errorf("unsupported output format: %q", s)
	}
}

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	case FormatAVIF:
		return "avif"
	case FormatTIFF:
		return "tiff"
	case FormatGIF:
		return "gif"
	case FormatBMP:
		return "bmp"
	default:
		return "unknown"
	}
}

// Ext returns the file extension for the format, dot included.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return "." + f.String()
}

// EncodeSupported reports whether the format can be produced as output.
// WebP and AVIF decode fine but have no pure-Go encoder.
func (f Format) EncodeSupported() bool {
	switch f {
	case FormatJPEG, FormatPNG, FormatTIFF, FormatGIF, FormatBMP:
		return true
	default:
		return false
	}
}

// Options are the effective encode settings for one file.
type Options struct {
	Format  Format
	Quality int // 1..100; 0 means DefaultQuality
	Width   int // target width in px; 0 keeps source dimension
	Height  int // target height in px; 0 keeps source dimension
}

func (o Options) Validate() error {
	if !o.Format.EncodeSupported() {
		return fmt.Errorf("%s output is not supported", o.Format)
	}
	if o.Quality < 0 || o.Quality > 100 {
		return fmt.Errorf("quality must be between 0 and 100, got %d", o.Quality)
	}
	if o.Width < 0 || o.Height < 0 {
		return errors.New("target dimensions must not be negative")
	}
	return nil
}

func (o Options) quality() int {
	if o.Quality == 0 {
		return DefaultQuality
	}
	return o.Quality
}

// Transcoder converts a source image file into an encoded output file.
// Deterministic given identical input and options.
type Transcoder interface {
	Transcode(srcPath, dstPath string, opts Options) (int64, error)
}

// ImageTranscoder implements Transcoder on the stdlib and x/image codecs.
type ImageTranscoder struct{}

func New() *ImageTranscoder {
	return &ImageTranscoder{}
}

// Transcode decodes srcPath, optionally resizes, encodes per opts and writes
// the result to dstPath. Returns the number of bytes written. Error text is
// safe to surface to end users; local paths never appear in it.
func (t *ImageTranscoder) Transcode(srcPath, dstPath string, opts Options) (int64, error) {
	if err := opts.Validate(); err != nil {
		return 0, err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return 0, ErrSourceUnreadable
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return 0, fmt.Errorf("decode image: %w", err)
	}

	img = resize(img, opts.Width, opts.Height)

	dst, err := os.Create(dstPath)
	if err != nil {
		return 0, errors.New("cannot create output file")
	}
	defer dst.Close()

	if err := encode(dst, img, opts); err != nil {
		os.Remove(dstPath)
		return 0, fmt.Errorf("encode %s: %w", opts.Format, err)
	}

	info, err := dst.Stat()
	if err != nil {
		return 0, errors.New("cannot stat output file")
	}
	return info.Size(), nil
}

// resize scales img to the requested dimensions using CatmullRom
// interpolation. A single dimension preserves the aspect ratio; zero for
// both keeps the image as is.
func resize(img image.Image, width, height int) image.Image {
	if width <= 0 && height <= 0 {
		return img
	}

	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return img
	}

	if width <= 0 {
		width = int(math.Round(float64(srcW) * float64(height) / float64(srcH)))
	}
	if height <= 0 {
		height = int(math.Round(float64(srcH) * float64(width) / float64(srcW)))
	}
	if width == srcW && height == srcH {
		return img
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
	return scaled
}

func encode(w io.Writer, img image.Image, opts Options) error {
	switch opts.Format {
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: opts.quality()})
	case FormatPNG:
		enc := &png.Encoder{CompressionLevel: pngLevel(opts.quality())}
		return enc.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case FormatGIF:
		return gif.Encode(w, img, nil)
	case FormatBMP:
		return bmp.Encode(w, img)
	default:
		// Unreachable when opts passed Validate.
		return fmt.Errorf("%s output is not supported", opts.Format)
	}
}

// pngLevel maps the 1..100 quality knob onto png's compression levels:
// lower quality asks for smaller output.
func pngLevel(quality int) png.CompressionLevel {
	switch {
	case quality <= 30:
		return png.BestCompression
	case quality <= 70:
		return png.DefaultCompression
	default:
		return png.BestSpeed
	}
}
