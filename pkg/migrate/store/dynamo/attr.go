package dynamo

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/baderkha/table-transfer/pkg/migrate/record"
)

// FromItem : dynamodb item -> record, every attribute kind is carried over untouched
func FromItem(item map[string]*dynamodb.AttributeValue) (record.Record, error) {
	r := make(record.Record, len(item))
	for k, av := range item {
		v, err := fromAttr(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %q : %w", k, err)
		}
		r[k] = v
	}
	return r, nil
}

// ToItem : record -> dynamodb item
func ToItem(r record.Record) map[string]*dynamodb.AttributeValue {
	item := make(map[string]*dynamodb.AttributeValue, len(r))
	for k, v := range r {
		item[k] = toAttr(v)
	}
	return item
}

func fromAttr(av *dynamodb.AttributeValue) (record.Value, error) {
	switch {
	case av == nil:
		return record.Null(), nil
	case av.S != nil:
		return record.String(*av.S), nil
	case av.N != nil:
		return record.Number(*av.N), nil
	case av.B != nil:
		return record.Binary(av.B), nil
	case av.BOOL != nil:
		return record.Bool(*av.BOOL), nil
	case av.NULL != nil:
		return record.Null(), nil
	case av.M != nil:
		m, err := FromItem(av.M)
		if err != nil {
			return record.Value{}, err
		}
		return record.Map(m), nil
	case av.L != nil:
		vs := make([]record.Value, 0, len(av.L))
		for i, e := range av.L {
			v, err := fromAttr(e)
			if err != nil {
				return record.Value{}, fmt.Errorf("list index %d : %w", i, err)
			}
			vs = append(vs, v)
		}
		return record.List(vs...), nil
	case av.SS != nil:
		return record.StringSet(aws.StringValueSlice(av.SS)...), nil
	case av.NS != nil:
		return record.NumberSet(aws.StringValueSlice(av.NS)...), nil
	case av.BS != nil:
		return record.BinarySet(av.BS...), nil
	}
	return record.Value{}, fmt.Errorf("attribute value has no member set")
}

func toAttr(v record.Value) *dynamodb.AttributeValue {
	switch v.Kind() {
	case record.KindString:
		return &dynamodb.AttributeValue{S: aws.String(v.Str())}
	case record.KindNumber:
		return &dynamodb.AttributeValue{N: aws.String(v.Str())}
	case record.KindBinary:
		return &dynamodb.AttributeValue{B: v.Bytes()}
	case record.KindBool:
		return &dynamodb.AttributeValue{BOOL: aws.Bool(v.BoolValue())}
	case record.KindMap:
		return &dynamodb.AttributeValue{M: ToItem(v.MapValue())}
	case record.KindList:
		l := make([]*dynamodb.AttributeValue, 0, len(v.ListValue()))
		for _, e := range v.ListValue() {
			l = append(l, toAttr(e))
		}
		return &dynamodb.AttributeValue{L: l}
	case record.KindStringSet:
		return &dynamodb.AttributeValue{SS: aws.StringSlice(v.Strings())}
	case record.KindNumberSet:
		return &dynamodb.AttributeValue{NS: aws.StringSlice(v.Strings())}
	case record.KindBinarySet:
		return &dynamodb.AttributeValue{BS: v.BinaryList()}
	}
	return &dynamodb.AttributeValue{NULL: aws.Bool(true)}
}
