// package record
//
// opaque key-value items moved between tables. values are copied as is and
// never interpreted beyond their kind
package record

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Kind : type tag of a Value
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBinary
	KindBool
	KindMap
	KindList
	KindStringSet
	KindNumberSet
	KindBinarySet
)

var kindTags = map[Kind]string{
	KindNull:      "NULL",
	KindString:    "S",
	KindNumber:    "N",
	KindBinary:    "B",
	KindBool:      "BOOL",
	KindMap:       "M",
	KindList:      "L",
	KindStringSet: "SS",
	KindNumberSet: "NS",
	KindBinarySet: "BS",
}

func (k Kind) String() string {
	if tag, ok := kindTags[k]; ok {
		return tag
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Value : a single attribute value. the zero value is NULL
type Value struct {
	kind Kind
	str  string // S and N
	bin  []byte
	flag bool
	m    Record
	list []Value
	strs []string // SS and NS
	bins [][]byte
}

func Null() Value { return Value{kind: KindNull} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func Binary(b []byte) Value { return Value{kind: KindBinary, bin: b} }
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }
func Map(r Record) Value { return Value{kind: KindMap, m: r} }
func List(vs ...Value) Value { return Value{kind: KindList, list: vs} }
func StringSet(ss ...string) Value { return Value{kind: KindStringSet, strs: ss} }
func NumberSet(ns ...string) Value { return Value{kind: KindNumberSet, strs: ns} }
func BinarySet(bs ...[]byte) Value { return Value{kind: KindBinarySet, bins: bs} }

// Number : numbers keep their decimal text so no precision is lost in transit
func Number(n string) Value { return Value{kind: KindNumber, str: n} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) Str() string { return v.str }
func (v Value) Bytes() []byte { return v.bin }
func (v Value) BoolValue() bool { return v.flag }
func (v Value) MapValue() Record { return v.m }
func (v Value) ListValue() []Value { return v.list }
func (v Value) Strings() []string { return v.strs }
func (v Value) BinaryList() [][]byte { return v.bins }

// Equal : deep structural equality, set order matters
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString, KindNumber:
		return v.str == o.str
	case KindBinary:
		return bytes.Equal(v.bin, o.bin)
	case KindBool:
		return v.flag == o.flag
	case KindMap:
		return v.m.Equal(o.m)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindStringSet, KindNumberSet:
		if len(v.strs) != len(o.strs) {
			return false
		}
		for i := range v.strs {
			if v.strs[i] != o.strs[i] {
				return false
			}
		}
		return true
	case KindBinarySet:
		if len(v.bins) != len(o.bins) {
			return false
		}
		for i := range v.bins {
			if !bytes.Equal(v.bins[i], o.bins[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON : encodes the value as a single-key object tagged with its kind, ie {"S":"abc"}
func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.kind {
	case KindNull:
		payload = true
	case KindString, KindNumber:
		payload = v.str
	case KindBinary:
		payload = nonNilBytes(v.bin)
	case KindBool:
		payload = v.flag
	case KindMap:
		payload = nonNilRecord(v.m)
	case KindList:
		payload = nonNilValues(v.list)
	case KindStringSet, KindNumberSet:
		payload = nonNilStrings(v.strs)
	case KindBinarySet:
		payload = nonNilBinaries(v.bins)
	default:
		return nil, fmt.Errorf("record: cannot encode unknown kind %s", v.kind)
	}
	return json.Marshal(map[string]any{v.kind.String(): payload})
}

// UnmarshalJSON : inverse of MarshalJSON
func (v *Value) UnmarshalJSON(b []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(b, &tagged); err != nil {
		return fmt.Errorf("record: value must be a tagged object : %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("record: value must have exactly one kind tag, got %d", len(tagged))
	}
	for tag, raw := range tagged {
		kind, ok := kindFromTag(tag)
		if !ok {
			return fmt.Errorf("record: unknown kind tag %q", tag)
		}
		out := Value{kind: kind}
		var err error
		switch kind {
		case KindNull:
			var isNull bool
			err = json.Unmarshal(raw, &isNull)
		case KindString, KindNumber:
			err = json.Unmarshal(raw, &out.str)
		case KindBinary:
			err = json.Unmarshal(raw, &out.bin)
		case KindBool:
			err = json.Unmarshal(raw, &out.flag)
		case KindMap:
			err = json.Unmarshal(raw, &out.m)
		case KindList:
			err = json.Unmarshal(raw, &out.list)
		case KindStringSet, KindNumberSet:
			err = json.Unmarshal(raw, &out.strs)
		case KindBinarySet:
			err = json.Unmarshal(raw, &out.bins)
		}
		if err != nil {
			return fmt.Errorf("record: bad %s payload : %w", tag, err)
		}
		*v = out
	}
	return nil
}

func kindFromTag(tag string) (Kind, bool) {
	for k, t := range kindTags {
		if t == tag {
			return k, true
		}
	}
	return 0, false
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func nonNilRecord(r Record) Record {
	if r == nil {
		return Record{}
	}
	return r
}

func nonNilValues(vs []Value) []Value {
	if vs == nil {
		return []Value{}
	}
	return vs
}

func nonNilStrings(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func nonNilBinaries(bs [][]byte) [][]byte {
	if bs == nil {
		return [][]byte{}
	}
	return bs
}
