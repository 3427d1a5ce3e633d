// Package format renders command output in the formats selected with
// --format.
package format

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type DataFormat string

const (
	FORMAT_LIST DataFormat = "list"
	FORMAT_JSON DataFormat = "json"
	FORMAT_YAML DataFormat = "yaml"
	FORMAT_TOML DataFormat = "toml"
)

var Formats = []DataFormat{FORMAT_LIST, FORMAT_JSON, FORMAT_YAML, FORMAT_TOML}

func (df DataFormat) String() string {
	return string(df)
}

func (df *DataFormat) Set(v string) error {
	switch DataFormat(v) {
	case FORMAT_LIST, FORMAT_JSON, FORMAT_YAML, FORMAT_TOML:
		*df = DataFormat(v)
		return nil
	default:
		return fmt.Errorf("must be one of %v", Formats)
	}
}

func (df DataFormat) Type() string {
	return "DataFormat"
}

// Marshal() renders data as outFormat.
//
// The list format writes one line per element of a slice, or a single line
// for anything else, with struct fields separated by spaces. TOML needs a
// table at the top level, so slices are wrapped under key.
func Marshal(data any, outFormat DataFormat, key string) ([]byte, error) {
	switch outFormat {
	case FORMAT_JSON:
		b, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data into JSON: %w", err)
		}
		return append(b, '\n'), nil
	case FORMAT_YAML:
		b, err := yaml.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data into YAML: %w", err)
		}
		return b, nil
	case FORMAT_TOML:
		if k := reflect.Indirect(reflect.ValueOf(data)).Kind(); k == reflect.Slice || k == reflect.Array {
			data = map[string]any{key: data}
		}
		b, err := toml.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data into TOML: %w", err)
		}
		return b, nil
	case FORMAT_LIST:
		return marshalList(data), nil
	default:
		return nil, fmt.Errorf("unknown data format: %s", outFormat)
	}
}

func marshalList(data any) []byte {
	var sb strings.Builder
	v := reflect.Indirect(reflect.ValueOf(data))
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		for i := 0; i < v.Len(); i++ {
			sb.WriteString(listLine(v.Index(i)))
			sb.WriteByte('\n')
		}
		return []byte(sb.String())
	}
	sb.WriteString(listLine(v))
	sb.WriteByte('\n')
	return []byte(sb.String())
}

func listLine(v reflect.Value) string {
	v = reflect.Indirect(v)
	if v.Kind() != reflect.Struct {
		return fmt.Sprint(v.Interface())
	}
	fields := make([]string, 0, v.NumField())
	for i := 0; i < v.NumField(); i++ {
		if v.Type().Field(i).IsExported() {
			fields = append(fields, fmt.Sprint(v.Field(i).Interface()))
		}
	}
	return strings.Join(fields, " ")
}
