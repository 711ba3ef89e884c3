// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package solver

import (
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Options parsed from the "<backend_options>" part of a configuration string: a comma-separated list
// of "key=value" (or just "key", for boolean flags) pairs.
type Options map[string]string

// ParseOptions parses the options of backend, and fails if a key is not in known.
func ParseOptions(backend, config string, known ...string) (Options, error) {
	opts := make(Options)
	for _, part := range strings.Split(config, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !slices.Contains(known, key) {
			return nil, errors.Errorf("unknown configuration option %q for solver backend %q, valid options are %v",
				key, backend, known)
		}
		opts[key] = strings.TrimSpace(value)
	}
	return opts, nil
}

// Int returns the value of the option key as an int, or defaultValue if not set.
func (o Options) Int(key string, defaultValue int) (int, error) {
	text, found := o[key]
	if !found {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(text)
	if err != nil {
		return 0, errors.Wrapf(err, "option %q must be an integer, got %q", key, text)
	}
	return value, nil
}
