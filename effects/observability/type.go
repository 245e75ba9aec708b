package observability

import "github.com/on-the-ground/effect_ive_runtime/effects"

// Effect is the sealed set of observability effects.
type Effect interface {
	effects.Effect
	observabilityEffect()
}

type IncrementCounter struct {
	Name   string
	Labels map[string]string
}

func (IncrementCounter) EffectTag() string    { return "IncrementCounter" }
func (IncrementCounter) observabilityEffect() {}

type ObserveHistogram struct {
	Name   string
	Value  float64
	Labels map[string]string
}

func (ObserveHistogram) EffectTag() string    { return "ObserveHistogram" }
func (ObserveHistogram) observabilityEffect() {}

// LogLevel defines the severity level for log messages.
type LogLevel string

const (
	// LogDebug is used for debugging messages with detailed internal information.
	LogDebug LogLevel = "debug"

	// LogInfo is used for general informational messages.
	LogInfo LogLevel = "info"

	// LogWarn is used for potentially harmful situations.
	LogWarn LogLevel = "warn"

	// LogError is used for error events that might still allow the application to continue running.
	LogError LogLevel = "error"
)

// EmitLog writes a structured log line from inside a Program.
type EmitLog struct {
	Level   LogLevel
	Message string
	Fields  map[string]any
}

func (EmitLog) EffectTag() string    { return "EmitLog" }
func (EmitLog) observabilityEffect() {}

// Recorded acknowledges a metric or log effect.
type Recorded struct {
	Name string
}
