package types

import (
	"sort"
)

// StreamDescriptor identifies a stream by name and optional namespace.
// A nil Namespace is distinct from an empty one.
type StreamDescriptor struct {
	Name      string  `json:"name"`
	Namespace *string `json:"namespace,omitempty"`
}

// NewStreamDescriptor returns a descriptor without a namespace.
func NewStreamDescriptor(name string) StreamDescriptor {
	return StreamDescriptor{Name: name}
}

// WithNamespace returns a copy of d scoped to namespace ns.
func (d StreamDescriptor) WithNamespace(ns string) StreamDescriptor {
	d.Namespace = &ns
	return d
}

// Key returns the comparable identity of the descriptor.
func (d StreamDescriptor) Key() StreamKey {
	k := StreamKey{Name: d.Name}
	if d.Namespace != nil {
		k.Namespace = *d.Namespace
		k.HasNamespace = true
	}
	return k
}

// Equal reports whether two descriptors name the same stream.
func (d StreamDescriptor) Equal(o StreamDescriptor) bool {
	return d.Key() == o.Key()
}

// String renders the descriptor as namespace.name, or name when the
// namespace is absent.
func (d StreamDescriptor) String() string {
	if d.Namespace == nil {
		return d.Name
	}
	return *d.Namespace + "." + d.Name
}

// StreamKey is the map key form of a StreamDescriptor.
type StreamKey struct {
	Name         string
	Namespace    string
	HasNamespace bool
}

// Descriptor converts the key back into a StreamDescriptor.
func (k StreamKey) Descriptor() StreamDescriptor {
	d := StreamDescriptor{Name: k.Name}
	if k.HasNamespace {
		ns := k.Namespace
		d.Namespace = &ns
	}
	return d
}

// StreamSet is a set of stream descriptors keyed by (name, namespace).
type StreamSet map[StreamKey]struct{}

// NewStreamSet builds a set from the given descriptors.
func NewStreamSet(streams ...StreamDescriptor) StreamSet {
	s := make(StreamSet, len(streams))
	for _, d := range streams {
		s.Add(d)
	}
	return s
}

// Add inserts d into the set.
func (s StreamSet) Add(d StreamDescriptor) {
	s[d.Key()] = struct{}{}
}

// Contains reports whether d is in the set.
func (s StreamSet) Contains(d StreamDescriptor) bool {
	_, ok := s[d.Key()]
	return ok
}

// Union adds every member of o to s.
func (s StreamSet) Union(o StreamSet) {
	for k := range o {
		s[k] = struct{}{}
	}
}

// Equal reports whether both sets have the same members.
func (s StreamSet) Equal(o StreamSet) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if _, ok := o[k]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the members ordered by namespace then name, with
// namespace-less streams first.
func (s StreamSet) Sorted() []StreamDescriptor {
	keys := make([]StreamKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.HasNamespace != b.HasNamespace {
			return !a.HasNamespace
		}
		if a.Namespace != b.Namespace {
			return a.Namespace < b.Namespace
		}
		return a.Name < b.Name
	})
	out := make([]StreamDescriptor, len(keys))
	for i, k := range keys {
		out[i] = k.Descriptor()
	}
	return out
}
