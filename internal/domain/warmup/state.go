// Package warmup models model-readiness gating.
package warmup

import (
	"strings"
	"time"
)

// State is the process-wide readiness of the language model.
type State int32

// Readiness states.
const (
	Cold State = iota
	WarmingUp
	Ready
	// Degraded is reached after exhausted retries; traffic is still served.
	Degraded
)

func (s State) String() string {
	switch s {
	case Cold:
		return "cold"
	case WarmingUp:
		return "warming_up"
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Readiness is a point-in-time snapshot for health reporting.
type Readiness struct {
	State     State
	Required  bool
	Attempts  int
	LastError string
	UpdatedAt time.Time
}

// Serving reports whether the model is known to be usable.
func (r Readiness) Serving() bool { return r.State == Ready }

// Platform indicators that imply a cold-starting managed runtime.
var platformEnvVars = []string{
	"AWS_EXECUTION_ENV",
	"ECS_CONTAINER_METADATA_URI",
	"ECS_CONTAINER_METADATA_URI_V4",
	"AWS_BATCH_JOB_ID",
}

// OverrideEnvVar forces warm-up on or off.
const OverrideEnvVar = "ENABLE_MODEL_WARMUP"

// ParseOverride interprets an explicit flag. ok is false for values that are neither true nor false.
func ParseOverride(v string) (enabled, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// Detect decides whether warm-up is required. An explicit override wins;
// otherwise any platform indicator turns it on.
func Detect(lookup func(string) (string, bool)) bool {
	if v, ok := lookup(OverrideEnvVar); ok {
		if enabled, valid := ParseOverride(v); valid {
			return enabled
		}
	}
	for _, k := range platformEnvVars {
		if v, ok := lookup(k); ok && v != "" {
			return true
		}
	}
	return false
}
