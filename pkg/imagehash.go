package dupimg

import (
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/artyom/phash"
	"github.com/disintegration/imaging"
)

// ImageLoader decodes the image stored at path
type ImageLoader func(path string) (image.Image, error)

// HashFunc computes the perceptual hash of a decoded image
type HashFunc func(img image.Image) (uint64, error)

// DecodeErrorKind classifies image decoding failures
type DecodeErrorKind int

const (
	DecodeOther          DecodeErrorKind = iota // I/O and anything else
	DecodeUnknownFormat                         // no registered decoder
	DecodeInvalidContent                        // decoder rejected the data
)

// DecodeError is returned by LoadImage when a file cannot be decoded
type DecodeError struct {
	Path string
	Kind DecodeErrorKind
	Err  error
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case DecodeUnknownFormat:
		return "Unknown format"
	case DecodeInvalidContent:
		return "Contains invalid content"
	default:
		return e.Err.Error()
	}
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// LoadImage decodes an image file, applying its EXIF orientation
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Path: path, Kind: classifyDecodeError(err), Err: err}
	}
	return img, nil
}

func classifyDecodeError(err error) DecodeErrorKind {
	var (
		jpegFormat      jpeg.FormatError
		jpegUnsupported jpeg.UnsupportedError
		pngFormat       png.FormatError
		pngUnsupported  png.UnsupportedError
	)

	switch {
	case errors.Is(err, image.ErrFormat), errors.Is(err, imaging.ErrUnsupportedFormat):
		return DecodeUnknownFormat
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF),
		errors.As(err, &jpegFormat), errors.As(err, &jpegUnsupported),
		errors.As(err, &pngFormat), errors.As(err, &pngUnsupported):
		return DecodeInvalidContent
	default:
		return DecodeOther
	}
}

// PerceptualHash computes the DCT-based perceptual hash of img
func PerceptualHash(img image.Image) (uint64, error) {
	return phash.Get(img, func(img image.Image, w, h int) image.Image {
		return imaging.Resize(img, w, h, imaging.Lanczos)
	})
}
