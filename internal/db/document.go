package db

import (
	"errors"
	"strings"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidPath = errors.New("invalid document path")
)

// Doc is the field map stored at a document path.
type Doc map[string]any

// Document is a stored Doc together with its path.
type Document struct {
	Path string `json:"path"`
	ID   string `json:"id"`
	Data Doc    `json:"data"`
}

// Snapshot is the full content of one collection at a store version.
type Snapshot struct {
	Collection string
	Version    int64
	Docs       []Document
}

type UpdateOp int

const (
	OpSet UpdateOp = iota
	OpArrayUnion
	OpArrayRemove
)

// FieldUpdate changes one top-level field of a document.
// OpArrayUnion and OpArrayRemove treat the field as a set of strings.
type FieldUpdate struct {
	Field string
	Op    UpdateOp
	Value any
}

func SetField(field string, value any) FieldUpdate {
	return FieldUpdate{Field: field, Op: OpSet, Value: value}
}

func ArrayUnion(field, value string) FieldUpdate {
	return FieldUpdate{Field: field, Op: OpArrayUnion, Value: value}
}

func ArrayRemove(field, value string) FieldUpdate {
	return FieldUpdate{Field: field, Op: OpArrayRemove, Value: value}
}

type WriteKind int

const (
	WriteSet WriteKind = iota
	WriteUpdate
	WriteDelete
)

// Write is one entry of an atomic batch.
type Write struct {
	Kind    WriteKind
	Path    string
	Data    Doc
	Updates []FieldUpdate
	// IfExists makes an update of a missing document a no-op instead of
	// failing the batch.
	IfExists bool
}

// SplitPath returns the collection path and document id of a document path.
// Document paths have an even number of segments: coll/id[/coll/id...].
func SplitPath(path string) (collection, id string, err error) {
	segs := strings.Split(path, "/")
	if len(segs) < 2 || len(segs)%2 != 0 {
		return "", "", ErrInvalidPath
	}
	for _, s := range segs {
		if s == "" {
			return "", "", ErrInvalidPath
		}
	}
	return strings.Join(segs[:len(segs)-1], "/"), segs[len(segs)-1], nil
}

func applyUpdates(doc Doc, updates []FieldUpdate) Doc {
	if doc == nil {
		doc = Doc{}
	}
	for _, u := range updates {
		switch u.Op {
		case OpSet:
			doc[u.Field] = u.Value
		case OpArrayUnion:
			v, _ := u.Value.(string)
			set := stringList(doc[u.Field])
			if !containsString(set, v) {
				set = append(set, v)
			}
			doc[u.Field] = set
		case OpArrayRemove:
			v, _ := u.Value.(string)
			set := stringList(doc[u.Field])
			out := make([]string, 0, len(set))
			for _, s := range set {
				if s != v {
					out = append(out, s)
				}
			}
			doc[u.Field] = out
		}
	}
	return doc
}

// stringList normalizes a stored list field; JSON decoding yields []any.
func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
