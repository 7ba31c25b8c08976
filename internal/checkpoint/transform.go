package checkpoint

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Stats summarizes one conversion pass.
type Stats struct {
	Kept    int // entries emitted under their own name
	Renamed int // EMA entries emitted under the stripped name
	Dropped int // entries filtered out
}

// Transformer applies one conversion mode and precision to a StateDict.
type Transformer struct {
	Mode      Mode
	Precision Precision
	Log       logrus.FieldLogger // optional; per-key diagnostics at debug level
}

// Transform converts sd with mode and precision and returns a fresh StateDict.
// sd is not modified. Iteration order is preserved; when two input keys map to
// the same output name the later value wins and keeps the earlier position.
func Transform(sd *StateDict, mode Mode, precision Precision) *StateDict {
	out, _ := Transformer{Mode: mode, Precision: precision}.Apply(sd)
	return out
}

// Apply runs the conversion pass over sd.
func (t Transformer) Apply(sd *StateDict) (*StateDict, Stats) {
	log := t.Log
	if log == nil {
		log = discardLogger()
	}

	out := NewStateDict()
	var stats Stats

	for key, value := range sd.All() {
		switch t.Mode {
		case EMAOnly:
			switch {
			case IsEMABookkeeping(key):
				stats.Dropped++
				log.WithField("key", key).Debug("drop ema bookkeeping")
			case HasEMAPrefix(key):
				name := StripEMAPrefix(key)
				out.Set(name, t.Precision.Cast(value))
				stats.Renamed++
				log.WithFields(logrus.Fields{"from": key, "to": name}).Debug("ema")
			default:
				out.Set(key, t.Precision.Cast(value))
				stats.Kept++
				log.WithField("key", key).Debug("keep")
			}
		case NoEMA:
			if ContainsEMAMarker(key) {
				stats.Dropped++
				log.WithField("key", key).Debug("drop ema")
				continue
			}
			out.Set(key, t.Precision.Cast(value))
			stats.Kept++
		default:
			out.Set(key, t.Precision.Cast(value))
			stats.Kept++
		}
	}

	log.WithFields(logrus.Fields{
		"mode":      t.Mode.String(),
		"precision": t.Precision.String(),
		"kept":      stats.Kept,
		"renamed":   stats.Renamed,
		"dropped":   stats.Dropped,
		"entries":   out.Len(),
	}).Info("checkpoint transformed")

	return out, stats
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
