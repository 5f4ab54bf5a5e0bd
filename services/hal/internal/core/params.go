package core

import (
	"gopkg.in/yaml.v3"

	"esp32-devkit-go/errcode"
)

// DecodeParams fills dst from a device's Params. Typed values (T or *T) are
// used as-is; anything else, normally a map decoded from the board config, is
// round-tripped through YAML using the struct's yaml tags.
func DecodeParams[T any](src any, dst *T) error {
	switch v := src.(type) {
	case nil:
		return errcode.InvalidParams
	case T:
		*dst = v
		return nil
	case *T:
		if v == nil {
			return errcode.InvalidParams
		}
		*dst = *v
		return nil
	}
	b, err := yaml.Marshal(src)
	if err != nil {
		return errcode.Wrap(errcode.InvalidParams, "params", err)
	}
	if err := yaml.Unmarshal(b, dst); err != nil {
		return errcode.Wrap(errcode.InvalidParams, "params", err)
	}
	return nil
}

// As asserts a control payload to T. A nil payload is the zero value of T.
func As[T any](v any) (T, errcode.Code) {
	var zero T
	if v == nil {
		return zero, ""
	}
	t, ok := v.(T)
	if !ok {
		return zero, errcode.InvalidPayload
	}
	return t, ""
}
