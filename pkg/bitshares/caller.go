package bitshares

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/kalutskii/etil-sterahstib/pkg/rpc"
)

// Namespaces used by the façades.
const (
	NamespaceDatabase         = "database"
	NamespaceHistory          = "history"
	NamespaceNetworkBroadcast = "network_broadcast"
)

// Caller issues one namespaced call. *rpc.Session implements it.
type Caller interface {
	Call(ctx context.Context, namespace, method string, params []any, opts ...rpc.CallOption) (json.RawMessage, error)
}

// Subscriber is a Caller that can also keep a call's objects under watch.
type Subscriber interface {
	Caller
	Subscribe(ctx context.Context, namespace, method string, params []any, listener rpc.Listener, opts ...rpc.CallOption) (*rpc.Subscription, json.RawMessage, error)
}

// DecodeError reports a result that did not match the expected schema.
type DecodeError struct {
	Namespace string
	Method    string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s.%s result: %v", e.Namespace, e.Method, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		return IsObjectID(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("failed to register objectid validation: %v", err))
	}
	return v
}

// validateValue runs struct validation on v, descending through pointers,
// slices and arrays. Values without struct elements pass.
func validateValue(v any) error {
	return validateReflect(reflect.ValueOf(v))
}

func validateReflect(rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return validateReflect(rv.Elem())
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := validateReflect(rv.Index(i)); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		return nil
	case reflect.Struct:
		if !rv.CanAddr() {
			cp := reflect.New(rv.Type())
			cp.Elem().Set(rv)
			rv = cp.Elem()
		}
		return validate.Struct(rv.Addr().Interface())
	default:
		return nil
	}
}

// call performs the request and decodes its result into T.
func call[T any](ctx context.Context, c Caller, namespace, method string, params ...any) (T, error) {
	var out T
	raw, err := c.Call(ctx, namespace, method, params)
	if err != nil {
		return out, err
	}
	if err := decode(raw, &out); err != nil {
		return out, &DecodeError{Namespace: namespace, Method: method, Err: err}
	}
	return out, nil
}

func decode(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return err
	}
	return validateValue(out)
}

// DecodeObject decodes one entry of a get_objects result. A null entry
// yields nil.
func DecodeObject[T any](raw json.RawMessage) (*T, error) {
	var out *T
	if len(raw) == 0 {
		return nil, nil
	}
	if err := decode(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
