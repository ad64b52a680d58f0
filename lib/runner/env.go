// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// EnvList converts an environment map into KEY=VALUE form sorted by
// key. The result is never nil, so exec.Cmd does not fall back to the
// parent environment.
func EnvList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	list := make([]string, 0, len(keys))
	for _, key := range keys {
		list = append(list, key+"="+env[key])
	}
	return list
}

// LookPath resolves name against searchPath, a colon-separated
// directory list. Names containing a slash are returned unchanged
// after checking they are executable.
func LookPath(name, searchPath string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty executable name: %w", exec.ErrNotFound)
	}
	if strings.Contains(name, "/") {
		if err := checkExecutable(name); err != nil {
			return "", err
		}
		return name, nil
	}
	for _, directory := range filepath.SplitList(searchPath) {
		if directory == "" {
			continue
		}
		candidate := filepath.Join(directory, name)
		if checkExecutable(candidate) == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s not found in %q: %w", name, searchPath, exec.ErrNotFound)
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s is not executable: %w", path, os.ErrPermission)
	}
	return nil
}
