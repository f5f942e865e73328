// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE documents against embedded schemas.
//
// Every CUE file procdrive reads (the user configuration and session files)
// goes through the same steps:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify it with a schema definition
//  3. Validate and decode into a Go value
//
// # Usage
//
//	//go:embed session_schema.cue
//	var schema []byte
//
//	result, err := cueutil.ParseAndDecode[Session](schema, data, "#Session",
//	    cueutil.WithFilename("deploy.cue"),
//	    cueutil.WithConcrete(true),
//	)
//	if err != nil {
//	    return nil, err // *ValidationErrors with JSON paths such as "answers[1].reply"
//	}
//
// DecodeMap performs the same validation but decodes into a map, which is how
// configuration is merged into Viper.
package cueutil
