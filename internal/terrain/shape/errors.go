package shape

import "fmt"

// MaxLayers bounds the layer list so it fits the fixed-capacity mirror.
const MaxLayers = 16

const (
	ReasonEmptyLayers     = "EMPTY_LAYERS"
	ReasonWarpTargetRange = "WARP_TARGET_RANGE"
	ReasonTooManyLayers   = "TOO_MANY_LAYERS"
	ReasonLayerIndexRange = "LAYER_INDEX_RANGE"
)

// ConfigurationError reports a structurally invalid generator. It is raised
// before any layer is evaluated and never clamped away.
type ConfigurationError struct {
	Reason string
	Index  int
	Detail string
}

func (e *ConfigurationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("shape config: %s", e.Reason)
	}
	return fmt.Sprintf("shape config: %s: %s", e.Reason, e.Detail)
}

func configErr(reason string, index int, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: reason, Index: index, Detail: fmt.Sprintf(format, args...)}
}
