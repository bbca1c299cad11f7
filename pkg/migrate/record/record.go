package record

import (
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

// Record : one item of a table, attribute name -> value
type Record map[string]Value

// Names : attribute names in sorted order
func (r Record) Names() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Equal : same attribute names with equal values
func (r Record) Equal(o Record) bool {
	if len(r) != len(o) {
		return false
	}
	for k, v := range r {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Project : the sub record made of the given attributes, errors if one is absent
func (r Record) Project(attrs []string) (Record, error) {
	key := make(Record, len(attrs))
	for _, a := range attrs {
		v, ok := r[a]
		if !ok {
			return nil, fmt.Errorf("record: missing key attribute %q", a)
		}
		key[a] = v
	}
	return key, nil
}

// KeyString : canonical encoding of the key attributes, stable across runs
func (r Record) KeyString(attrs []string) (string, error) {
	key, err := r.Project(attrs)
	if err != nil {
		return "", err
	}
	b, err := Encode(key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Encode : canonical json form of a record, attribute names sorted
func Encode(r Record) ([]byte, error) {
	if r == nil {
		r = Record{}
	}
	return json.Marshal(r)
}

// Decode : inverse of Encode
func Decode(b []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("record: decode : %w", err)
	}
	if r == nil {
		r = Record{}
	}
	return r, nil
}
