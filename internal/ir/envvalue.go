package ir

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// EnvBinding associates one concrete value with a set of execution
// environments. Environments are kept sorted for canonical output.
type EnvBinding[T any] struct {
	Environments []string `json:"environments"`
	Value        T        `json:"value"`
}

// EnvValue is the environment-indexed field container. A single logical field
// (memory, container, retry count) may carry different concrete values under
// different execution environments, plus an optional default that applies
// when no exact environment entry exists.
//
// Setting a value for an environment never shadows the default; the two are
// independent slots and lookups prefer the exact entry.
type EnvValue[T any] struct {
	defaultValue *T
	bindings     []EnvBinding[T]
}

// NewEnvValue returns an EnvValue whose default is v.
func NewEnvValue[T any](v T) *EnvValue[T] {
	return &EnvValue[T]{defaultValue: &v}
}

// EnvValueFor returns an EnvValue carrying v for exactly the given environment.
func EnvValueFor[T any](env string, v T) *EnvValue[T] {
	e := &EnvValue[T]{}
	e.SetFor(env, v)
	return e
}

// GetFor performs an exact environment lookup with no default fallback.
func (e *EnvValue[T]) GetFor(env string) (T, bool) {
	var zero T
	if e == nil {
		return zero, false
	}
	for _, b := range e.bindings {
		for _, be := range b.Environments {
			if be == env {
				return b.Value, true
			}
		}
	}
	return zero, false
}

// GetWithDefault performs an exact lookup, falling back to the default.
func (e *EnvValue[T]) GetWithDefault(env string) (T, bool) {
	if v, ok := e.GetFor(env); ok {
		return v, true
	}
	var zero T
	if e == nil || e.defaultValue == nil {
		return zero, false
	}
	return *e.defaultValue, true
}

// Default returns the default value if set.
func (e *EnvValue[T]) Default() (T, bool) {
	var zero T
	if e == nil || e.defaultValue == nil {
		return zero, false
	}
	return *e.defaultValue, true
}

// SetDefault sets the default value.
func (e *EnvValue[T]) SetDefault(v T) {
	e.defaultValue = &v
}

// SetFor binds v to env, replacing any prior binding for that environment.
// Bindings with equal values share one entry so the canonical form stays
// compact and deterministic.
func (e *EnvValue[T]) SetFor(env string, v T) {
	e.removeEnv(env)
	for i := range e.bindings {
		if reflect.DeepEqual(e.bindings[i].Value, v) {
			e.bindings[i].Environments = append(e.bindings[i].Environments, env)
			sort.Strings(e.bindings[i].Environments)
			return
		}
	}
	e.bindings = append(e.bindings, EnvBinding[T]{Environments: []string{env}, Value: v})
}

func (e *EnvValue[T]) removeEnv(env string) {
	out := e.bindings[:0]
	for _, b := range e.bindings {
		envs := b.Environments[:0]
		for _, be := range b.Environments {
			if be != env {
				envs = append(envs, be)
			}
		}
		b.Environments = envs
		if len(envs) > 0 {
			out = append(out, b)
		}
	}
	e.bindings = out
}

// HasEnv reports whether an exact entry exists for env.
func (e *EnvValue[T]) HasEnv(env string) bool {
	_, ok := e.GetFor(env)
	return ok
}

// HasDefault reports whether the default slot is set.
func (e *EnvValue[T]) HasDefault() bool {
	return e != nil && e.defaultValue != nil
}

// ApplicableEnvironments returns the sorted set of environments carrying an
// exact entry.
func (e *EnvValue[T]) ApplicableEnvironments() []string {
	if e == nil {
		return nil
	}
	var envs []string
	for _, b := range e.bindings {
		envs = append(envs, b.Environments...)
	}
	sort.Strings(envs)
	return envs
}

// Bindings returns the environment bindings in insertion order.
func (e *EnvValue[T]) Bindings() []EnvBinding[T] {
	if e == nil {
		return nil
	}
	return e.bindings
}

// IsEmpty reports whether neither default nor any binding is set.
func (e *EnvValue[T]) IsEmpty() bool {
	return e == nil || (e.defaultValue == nil && len(e.bindings) == 0)
}

type envValueJSON[T any] struct {
	DefaultValue *T              `json:"default_value,omitempty"`
	Values       []EnvBinding[T] `json:"values,omitempty"`
}

// MarshalJSON emits {default_value, values: [{environments: sorted, value}]}.
func (e EnvValue[T]) MarshalJSON() ([]byte, error) {
	doc := envValueJSON[T]{DefaultValue: e.defaultValue}
	for _, b := range e.bindings {
		envs := append([]string(nil), b.Environments...)
		sort.Strings(envs)
		doc.Values = append(doc.Values, EnvBinding[T]{Environments: envs, Value: b.Value})
	}
	return json.Marshal(doc)
}

// UnmarshalJSON accepts both the canonical object form and the legacy flat
// scalar form; a bare scalar becomes the default with no bindings.
func (e *EnvValue[T]) UnmarshalJSON(data []byte) error {
	var doc envValueJSON[T]
	if err := json.Unmarshal(data, &doc); err == nil && looksLikeEnvObject(data) {
		e.defaultValue = doc.DefaultValue
		e.bindings = doc.Values
		for i := range e.bindings {
			sort.Strings(e.bindings[i].Environments)
		}
		return nil
	}
	var scalar T
	if err := json.Unmarshal(data, &scalar); err != nil {
		return fmt.Errorf("environment value: %w", err)
	}
	e.defaultValue = &scalar
	e.bindings = nil
	return nil
}

// looksLikeEnvObject distinguishes the canonical wrapper from a legacy object
// scalar (e.g. a bare env_vars map) by probing for the wrapper keys.
func looksLikeEnvObject(data []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	if len(probe) == 0 {
		return false
	}
	for k := range probe {
		if k != "default_value" && k != "values" {
			return false
		}
	}
	return true
}
