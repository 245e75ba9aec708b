package assembly

import (
	"net/http"

	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/cache"
)

// Effect is the sealed set of runtime-assembly effects.
type Effect interface {
	effects.Effect
	assemblyEffect()
}

// CreateDatabasePool resumes with PoolCreated.
type CreateDatabasePool struct {
	DSN      string
	MinConns int32
	MaxConns int32
}

func (CreateDatabasePool) EffectTag() string { return "CreateDatabasePool" }
func (CreateDatabasePool) assemblyEffect()   {}

type CloseDatabasePool struct {
	Pool any
}

func (CloseDatabasePool) EffectTag() string { return "CloseDatabasePool" }
func (CloseDatabasePool) assemblyEffect()   {}

// CreateClientFactory builds the cache client factory named by Backend,
// e.g. "ristretto" or "otter".
type CreateClientFactory struct {
	Backend    string
	MaxEntries int64
}

func (CreateClientFactory) EffectTag() string { return "CreateClientFactory" }
func (CreateClientFactory) assemblyEffect()   {}

type CloseClientFactory struct {
	Factory ClientFactory
}

func (CloseClientFactory) EffectTag() string { return "CloseClientFactory" }
func (CloseClientFactory) assemblyEffect()   {}

type ConfigureCors struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
}

func (ConfigureCors) EffectTag() string { return "ConfigureCors" }
func (ConfigureCors) assemblyEffect()   {}

// IncludeRouter mounts Router under Prefix.
type IncludeRouter struct {
	Router http.Handler
	Prefix string
}

func (IncludeRouter) EffectTag() string { return "IncludeRouter" }
func (IncludeRouter) assemblyEffect()   {}

type MountStatic struct {
	Path      string
	Directory string
	Name      string
}

func (MountStatic) EffectTag() string { return "MountStatic" }
func (MountStatic) assemblyEffect()   {}

type SetAppMetadata struct {
	Title       string
	Description string
	Version     string
}

func (SetAppMetadata) EffectTag() string { return "SetAppMetadata" }
func (SetAppMetadata) assemblyEffect()   {}

type RegisterHTTPRoute struct {
	Method  string
	Path    string
	Handler http.Handler
}

func (RegisterHTTPRoute) EffectTag() string { return "RegisterHttpRoute" }
func (RegisterHTTPRoute) assemblyEffect()   {}

// CreateObservabilityInterpreter resumes with ObservabilityCreated.
type CreateObservabilityInterpreter struct {
	ServiceName string
}

func (CreateObservabilityInterpreter) EffectTag() string { return "CreateObservabilityInterpreter" }
func (CreateObservabilityInterpreter) assemblyEffect()   {}

type CloseObservabilityInterpreter struct {
	Interpreter effects.Interpreter
}

func (CloseObservabilityInterpreter) EffectTag() string { return "CloseObservabilityInterpreter" }
func (CloseObservabilityInterpreter) assemblyEffect()   {}

type PoolCreated struct {
	Pool any
}

// ClientFactory hands out the cache backend built by CreateClientFactory.
type ClientFactory interface {
	Backend() cache.Backend
}

type FactoryCreated struct {
	Factory ClientFactory
}

type ObservabilityCreated struct {
	Interpreter effects.Interpreter
}

// Applied acknowledges an assembly effect that produces no resource.
type Applied struct {
	Effect string
}
