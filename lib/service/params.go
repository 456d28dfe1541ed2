// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package service

import "fmt"

// Typed parameter accessors for handlers. Params arrive as the
// decoded JSON object from the request frame, so numbers are float64
// and nested objects are map[string]any. These helpers centralize the
// type switching and produce InvalidParamsError values that surface
// to the caller as ok:false responses.

// StringParam returns the named string parameter. Missing or
// non-string values are an error.
func StringParam(method string, params map[string]any, key string) (string, error) {
	value, present := params[key]
	if !present {
		return "", &InvalidParamsError{Method: method, Reason: fmt.Sprintf("missing required field %q", key)}
	}
	s, ok := value.(string)
	if !ok {
		return "", &InvalidParamsError{Method: method, Reason: fmt.Sprintf("field %q must be a string", key)}
	}
	return s, nil
}

// OptionalStringParam returns the named string parameter or fallback
// when absent. A present non-string value is still an error.
func OptionalStringParam(method string, params map[string]any, key, fallback string) (string, error) {
	if _, present := params[key]; !present {
		return fallback, nil
	}
	return StringParam(method, params, key)
}

// IntParam returns the named integer parameter. JSON numbers decode
// as float64; fractional values are rejected.
func IntParam(method string, params map[string]any, key string) (int, error) {
	value, present := params[key]
	if !present {
		return 0, &InvalidParamsError{Method: method, Reason: fmt.Sprintf("missing required field %q", key)}
	}
	f, ok := value.(float64)
	if !ok || f != float64(int(f)) {
		return 0, &InvalidParamsError{Method: method, Reason: fmt.Sprintf("field %q must be an integer", key)}
	}
	return int(f), nil
}

// OptionalIntParam returns the named integer parameter or fallback
// when absent.
func OptionalIntParam(method string, params map[string]any, key string, fallback int) (int, error) {
	if _, present := params[key]; !present {
		return fallback, nil
	}
	return IntParam(method, params, key)
}

// BoolParam returns the named boolean parameter or fallback when
// absent.
func BoolParam(method string, params map[string]any, key string, fallback bool) (bool, error) {
	value, present := params[key]
	if !present {
		return fallback, nil
	}
	b, ok := value.(bool)
	if !ok {
		return false, &InvalidParamsError{Method: method, Reason: fmt.Sprintf("field %q must be a boolean", key)}
	}
	return b, nil
}
