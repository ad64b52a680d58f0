// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads brewkeep's YAML configuration.
//
// Configuration comes from a single file named by the --config flag or
// the BREWKEEP_CONFIG environment variable. There is no search path
// and no discovery: when neither is given, [Default] is used as is.
// Values in the file are merged over the defaults, so a file only
// needs the keys it changes.
//
// Path fields are expanded after loading: ${HOME}, ${BREWKEEP_STATE}
// (the state directory), and ${VAR:-default} patterns. No other
// environment variables override config values.
//
// [Preferences] is the part of the configuration a run depends on. The
// executor copies it by value when a run starts, so edits made while a
// run is in progress take effect on the next run.
//
// This package depends on no other brewkeep packages.
package config
