// Package output - Speichern der generierten Bilder.
//
// Dieses Modul enthaelt:
// - Save: Format/Qualitaet pruefen, Dateinamen bauen, Bild schreiben
// - Encode: png, jpeg und webp Encoder
// - TempDir: frisches Ausgabeverzeichnis pro Request
package output

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
)

var (
	ErrInvalidFormat  = errors.New("invalid output format")
	ErrInvalidQuality = errors.New("invalid output quality")
)

// Formats accepted by the encoder after normalization.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatWebP = "webp"
)

// NormalizeFormat maps "jpg" to "jpeg" and rejects anything the encoder
// does not know.
func NormalizeFormat(format string) (string, error) {
	if format == "jpg" {
		format = FormatJPEG
	}

	switch format {
	case FormatPNG, FormatJPEG, FormatWebP:
		return format, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidFormat, format)
	}
}

func checkQuality(quality int) error {
	if quality < 0 || quality > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidQuality, quality)
	}
	return nil
}

// Filename returns output_{seed}_{index}.{ext}, or with an
// _intermediate_{step} marker when step is set. format must be normalized.
func Filename(seed int64, index any, format string, step *int) string {
	if step == nil {
		return fmt.Sprintf("output_%d_%v.%s", seed, index, format)
	}
	return fmt.Sprintf("output_%d_%v_intermediate_%d.%s", seed, index, *step, format)
}

// Save writes img into folder and returns the absolute path of the new file.
// folder must exist. index is the output number or any extra label.
func Save(folder string, seed int64, index any, img image.Image, format string, quality int, step *int) (string, error) {
	format, err := NormalizeFormat(format)
	if err != nil {
		return "", err
	}

	if err := checkQuality(quality); err != nil {
		return "", err
	}

	path, err := filepath.Abs(filepath.Join(folder, Filename(seed, index, format, step)))
	if err != nil {
		return "", err
	}

	if err := WriteFile(path, img, format, quality); err != nil {
		return "", err
	}

	return path, nil
}

// WriteFile encodes img into a new file at path.
func WriteFile(path string, img image.Image, format string, quality int) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if err := Encode(f, img, format, quality); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}

	return f.Close()
}

// Encode writes img in the given format. quality applies to jpeg and webp
// only; png is always written with the default encoder settings.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	format, err := NormalizeFormat(format)
	if err != nil {
		return err
	}

	if err := checkQuality(quality); err != nil {
		return err
	}

	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatJPEG:
		// image/jpeg rejects quality 0
		return jpeg.Encode(w, img, &jpeg.Options{Quality: max(quality, 1)})
	default:
		return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	}
}

// TempDir creates a fresh, uniquely named directory under parent. The
// caller owns it and its contents.
func TempDir(parent string) (string, error) {
	if parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return "", err
		}
	}
	return os.MkdirTemp(parent, "fluxserve-")
}
