// Package catalog holds the static stream definition tree for the
// SevenRooms API. Definitions are supplied at startup and read-only for the
// run's lifetime; the sync driver is the only consumer with cross-stream
// knowledge.
package catalog

import (
	"regexp"
	"sort"

	"github.com/datataps/roomtap/pkg/errors"
)

// ReplicationMethod describes how a stream is extracted
type ReplicationMethod string

const (
	// FullTable streams are re-fetched as whole snapshots and carry no bookmark
	FullTable ReplicationMethod = "FULL_TABLE"
	// Incremental streams advance a per-day bookmark as days complete
	Incremental ReplicationMethod = "INCREMENTAL"
)

// placeholderRe matches one {placeholder} in a path or parameter template
var placeholderRe = regexp.MustCompile(`\{[^{}]+\}`)

// StreamDefinition describes one extractable resource stream
type StreamDefinition struct {
	// Name is the stream identifier used for emission and bookmarks
	Name string
	// Path is the API route. A child stream's path contains exactly one
	// placeholder to be filled with a parent record's key value.
	Path string
	// DataKey names the result list inside the response envelope
	DataKey string
	// KeyProperties are the record's identifying fields; the first one keys
	// child cascades
	KeyProperties []string
	// ReplicationMethod is FULL_TABLE or INCREMENTAL
	ReplicationMethod ReplicationMethod
	// ReplicationKeys are the bookmark fields; non-empty iff incremental
	ReplicationKeys []string
	// UseDates controls whether from_date/to_date filters are sent
	UseDates bool
	// ExtraParams are static request parameters; values may contain
	// {placeholder} references resolved from run configuration first and the
	// current parent record second
	ExtraParams map[string]string
	// Children are dependent streams fetched once per parent record
	Children map[string]*StreamDefinition
}

// KeyProperty returns the primary key property, or "" when none is declared
func (s *StreamDefinition) KeyProperty() string {
	if len(s.KeyProperties) == 0 {
		return ""
	}
	return s.KeyProperties[0]
}

// HasReplicationKey reports whether the stream maintains a bookmark
func (s *StreamDefinition) HasReplicationKey() bool {
	return len(s.ReplicationKeys) > 0
}

// ChildNames returns the stream's child names in deterministic order
func (s *StreamDefinition) ChildNames() []string {
	names := make([]string, 0, len(s.Children))
	for name := range s.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Catalog is the stream definition tree keyed by top-level stream name
type Catalog struct {
	Streams map[string]*StreamDefinition
}

// StreamNames returns the top-level stream names in deterministic order
func (c *Catalog) StreamNames() []string {
	names := make([]string, 0, len(c.Streams))
	for name := range c.Streams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FlatStream is a de-nested stream entry for discovery output
type FlatStream struct {
	*StreamDefinition
	Parent string
}

// Flatten de-nests children for discovery mode: every stream, parent or
// child, appears once, children annotated with their parent's name.
func (c *Catalog) Flatten() map[string]FlatStream {
	flat := make(map[string]FlatStream)
	for name, stream := range c.Streams {
		flat[name] = FlatStream{StreamDefinition: stream}
		for childName, child := range stream.Children {
			flat[childName] = FlatStream{StreamDefinition: child, Parent: name}
		}
	}
	return flat
}

// Validate checks the catalog invariants: incremental streams declare
// replication keys, parents with children declare a key property, and child
// paths carry exactly one placeholder.
func (c *Catalog) Validate() error {
	for name, stream := range c.Streams {
		if err := validateStream(name, stream, false); err != nil {
			return err
		}
		if len(stream.Children) > 0 && stream.KeyProperty() == "" {
			return errors.Newf(errors.ErrorTypeConfig, "stream %q has children but no key properties", name)
		}
		for childName, child := range stream.Children {
			if err := validateStream(childName, child, true); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateStream(name string, stream *StreamDefinition, isChild bool) error {
	if stream.Name != name {
		return errors.Newf(errors.ErrorTypeConfig, "stream %q declares mismatched name %q", name, stream.Name)
	}
	if stream.Path == "" {
		return errors.Newf(errors.ErrorTypeConfig, "stream %q has no path", name)
	}
	if stream.ReplicationMethod == Incremental && !stream.HasReplicationKey() {
		return errors.Newf(errors.ErrorTypeConfig, "incremental stream %q has no replication keys", name)
	}
	if isChild {
		if n := len(placeholderRe.FindAllString(stream.Path, -1)); n != 1 {
			return errors.Newf(errors.ErrorTypeConfig, "child stream %q path must have exactly one placeholder, has %d", name, n)
		}
	}
	return nil
}

// SubstitutePath fills a child path's single placeholder with the parent
// record's key value.
func SubstitutePath(path, value string) string {
	return placeholderRe.ReplaceAllLiteralString(path, value)
}
