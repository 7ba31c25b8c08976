package checkpoint

import "strings"

// Reserved key names.
const (
	StateDictKey     = "state_dict"            // Wrapper key for the parameter mapping
	EMAPrefix        = "model_ema."            // Prefix of EMA shadow parameters
	EMAMarker        = "model_ema"             // Substring marking any EMA-related key
	EMANumUpdatesKey = "model_ema.num_updates" // EMA bookkeeping: update counter
	EMADecayKey      = "model_ema.decay"       // EMA bookkeeping: decay rate
)

// HasEMAPrefix reports whether key names an EMA shadow parameter.
// Only a literal leading "model_ema." counts.
func HasEMAPrefix(key string) bool {
	return strings.HasPrefix(key, EMAPrefix)
}

// ContainsEMAMarker reports whether "model_ema" appears anywhere in key.
func ContainsEMAMarker(key string) bool {
	return strings.Contains(key, EMAMarker)
}

// IsEMABookkeeping reports whether key is one of the two EMA bookkeeping scalars.
func IsEMABookkeeping(key string) bool {
	return key == EMANumUpdatesKey || key == EMADecayKey
}

// StripEMAPrefix returns the name of the parameter an EMA key shadows.
func StripEMAPrefix(key string) string {
	return strings.TrimPrefix(key, EMAPrefix)
}
