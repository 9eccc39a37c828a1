package predictor

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// AspectRatios are the ratios offered by flux-dev.
var AspectRatios = []string{"1:1", "16:9", "21:9", "3:2", "2:3", "4:5", "5:4", "3:4", "4:3", "9:16", "9:21"}

// ResolveAspectRatio converts "W:H" and the length of the longest side into
// pixel dimensions. The longer side equals base, the shorter one is scaled
// by the ratio and floored.
func ResolveAspectRatio(ratio string, base int) (width, height int, err error) {
	if base <= 0 {
		return 0, 0, fmt.Errorf("%w: image size must be positive, got %d", ErrInvalidInput, base)
	}

	parts := strings.Split(ratio, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w %q: expected W:H", ErrInvalidAspectRatio, ratio)
	}

	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w %q: %w", ErrInvalidAspectRatio, ratio, err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w %q: %w", ErrInvalidAspectRatio, ratio, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w %q: sides must be positive", ErrInvalidAspectRatio, ratio)
	}

	if w >= h {
		height = scaleSide(base, h, w)
		width = base
	} else {
		width = scaleSide(base, w, h)
		height = base
	}
	if width == 0 || height == 0 {
		return 0, 0, fmt.Errorf("%w %q: too extreme for image size %d", ErrInvalidAspectRatio, ratio, base)
	}
	return width, height, nil
}

// scaleSide returns floor(base*num/den) for num <= den without overflowing.
func scaleSide(base, num, den int) int {
	hi, lo := bits.Mul64(uint64(base), uint64(num))
	q, _ := bits.Div64(hi, lo, uint64(den))
	return int(q)
}
