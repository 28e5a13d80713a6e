// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package blocks holds block definitions (metadata + exposed properties +
// external pad map) and the builders that expand a block instance into an
// element subgraph (spec §4.4). Dispatch is a plain map from definition id
// to Builder — no inheritance.
package blocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/eyevinn/strom/internal/element"
	"github.com/eyevinn/strom/internal/events"
	"github.com/eyevinn/strom/internal/mf"
)

// PropertyType names the editor-facing type of an ExposedProperty.
type PropertyType int

const (
	TypeBool PropertyType = iota
	TypeInt
	TypeUInt
	TypeFloat
	TypeString
	TypeEnum
	TypeNetworkInterface
	TypeMediaFile
)

// Mapping says which element property an ExposedProperty resolves to. An
// ElementIDSuffix of "_block" marks a property the builder itself
// consumes; it is never forwarded to any element.
type Mapping struct {
	ElementIDSuffix string
	PropertyName    string
	Transform       string // optional named transform, e.g. "percent_to_float"
}

// ExposedProperty is one block-level property an editor can present.
type ExposedProperty struct {
	Name        string
	Label       string
	Description string
	Type        PropertyType
	EnumValues  []string
	Default     element.PropertyValue
	Mapping     Mapping
}

// ExternalPad is a block-level pad that maps to a pad on one of the
// block's internal elements.
type ExternalPad struct {
	Name               string
	MediaType          element.MediaType
	InternalElementID  string
	InternalPadName    string
}

// Definition is a block's static metadata.
type Definition struct {
	ID          string
	Name        string
	Description string
	Category    string
	Exposed     []ExposedProperty
	Inputs      []ExternalPad
	Outputs     []ExternalPad
	BuiltIn     bool
	UIMetadata  map[string]string
}

// BusHandler observes normalized bus messages for a single block instance.
// ctx is the owning flow's lifetime context, canceled on stop/restart, so a
// handler can safely tie background work (timers, polling loops) to it
// instead of holding a strong reference to the pipeline (spec §4.4, §9
// "bus-handler/closure problem").
type BusHandler func(ctx context.Context, msg mf.BusMessage)

// BuildResult is what a Builder returns: the elements it created (already
// id-prefixed with the instance id), the internal links between them, an
// optional bus handler, and any pad-level property overrides.
type BuildResult struct {
	Elements       []*element.Element
	MFElements     map[element.ID]mf.Element
	InternalLinks  []element.Link
	BusHandler     BusHandler
	PadProperties  map[element.PadRef]map[string]element.PropertyValue
}

// BuildContext carries everything a builder needs beyond its own
// properties: the element factory, the owning flow id, the pipeline under
// construction (already allocated, though not yet populated — safe to
// hold as a reference since every element lands on it before the flow
// starts), the event broadcaster, and a sink for dynamic-pad discovery
// events (spec §4.4 "the engine publishes the set of runtime-discovered
// pads as a separate event stream").
type BuildContext struct {
	Factory      mf.Factory
	FlowID       string
	Pipeline     mf.Pipeline
	Broadcaster  *events.Broadcaster
	OnDynamicPad func(elementID element.ID, pad mf.Pad)
}

// Builder instantiates one block instance's internal element subgraph.
type Builder interface {
	Build(instanceID string, properties map[string]element.PropertyValue, ctx BuildContext) (*BuildResult, error)
}

// Prefix returns the id an internal element of instanceID gets, per the
// "block_id:internal_name" namespacing rule (spec §3).
func Prefix(instanceID, internalName string) element.ID {
	return element.ID(instanceID + ":" + internalName)
}

// Registry holds the static set of block definitions and their builders.
type Registry struct {
	mu       sync.RWMutex
	defs     map[string]Definition
	builders map[string]Builder
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: map[string]Definition{}, builders: map[string]Builder{}}
}

// Register adds a definition and its builder. Re-registering the same id
// replaces both.
func (r *Registry) Register(def Definition, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.ID] = def
	r.builders[def.ID] = b
}

// Definition looks up a block definition by id.
func (r *Registry) Definition(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[id]
	return d, ok
}

// Builder looks up the builder for a block definition id.
func (r *Registry) Builder(id string) (Builder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[id]
	return b, ok
}

// List returns all registered definitions sorted by id, for stable API
// listing output.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Build dispatches to the builder registered for blockDefinitionID.
func (r *Registry) Build(blockDefinitionID, instanceID string, properties map[string]element.PropertyValue, ctx BuildContext) (*BuildResult, error) {
	b, ok := r.Builder(blockDefinitionID)
	if !ok {
		return nil, fmt.Errorf("blocks: no builder registered for %q", blockDefinitionID)
	}
	return b.Build(instanceID, properties, ctx)
}
