// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"os"
	"reflect"
)

// JSONOutput is embedded in parameter structs to add --json.
//
//	type statusParams struct {
//	    cli.JSONOutput
//	}
//
//	if done, err := params.EmitJSON(state); done {
//	    return err
//	}
type JSONOutput struct {
	OutputJSON bool `json:"-" flag:"json" desc:"output as JSON"`
}

// EmitJSON writes result as indented JSON to stdout when --json is
// set and reports whether it did. Nil slices are written as [].
func (j *JSONOutput) EmitJSON(result any) (bool, error) {
	if !j.OutputJSON {
		return false, nil
	}
	return true, WriteJSON(normalizeNilSlice(result))
}

// JSONEnabled reports whether --json was given.
func (j *JSONOutput) JSONEnabled() bool {
	return j.OutputJSON
}

// JSONOutputter is implemented by parameter structs with --json.
// Failing commands report their error as JSON for these.
type JSONOutputter interface {
	JSONEnabled() bool
}

// WriteJSON writes value as indented JSON to stdout.
func WriteJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func normalizeNilSlice(value any) any {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Slice && v.IsNil() {
		return reflect.MakeSlice(v.Type(), 0, 0).Interface()
	}
	return value
}
