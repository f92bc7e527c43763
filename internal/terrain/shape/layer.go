package shape

import "planetgen/internal/terrain/noise"

// Layer is one filter plus the flags that decide how it takes part in
// composition. WarpTarget is 1-based and only read when IsWarp is set.
type Layer struct {
	Filter         noise.Filter
	IsWarp         bool
	WarpTarget     uint32
	FirstLayerMask bool
	Enabled        bool
}

// NewLayer returns an enabled layer over the default filter.
func NewLayer() Layer {
	return Layer{
		Filter:  noise.NewFilter(),
		Enabled: true,
	}
}
