package flickr

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrNoFit is returned by BestFit when no size exceeds the display bounds on
// the binding dimension. Callers must treat this as an error rather than
// falling back to the largest size.
var ErrNoFit = errors.New("no size exceeds the display bounds")

// BestFit picks the size best suited to a maxWidth×maxHeight display box.
//
// The photo's aspect ratio decides which dimension the box constrains: if
// the box's ratio exceeds the photo's, width is the binding dimension,
// otherwise height. The result is the smallest size whose binding dimension
// strictly exceeds the corresponding bound. All sizes of a photo share one
// aspect ratio, so the first size stands in for it.
func BestFit(sizes []Size, maxWidth, maxHeight int) (Size, error) {
	if len(sizes) == 0 {
		return Size{}, errors.New("no sizes given")
	}
	ideal := float64(maxWidth) / float64(maxHeight)
	sample := sizes[0]
	bindWidth := ideal > float64(sample.Width)/float64(sample.Height)

	sorted := make([]Size, len(sizes))
	copy(sorted, sizes)
	sort.Slice(sorted, func(i, j int) bool {
		if bindWidth {
			return sorted[i].Width < sorted[j].Width
		}
		return sorted[i].Height < sorted[j].Height
	})

	for _, s := range sorted {
		if bindWidth && s.Width > maxWidth {
			return s, nil
		}
		if !bindWidth && s.Height > maxHeight {
			return s, nil
		}
	}
	return Size{}, ErrNoFit
}
