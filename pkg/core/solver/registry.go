// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package solver

import (
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Constructor takes a config string (optionally empty) and returns a new Backend.
type Constructor func(config string) (Backend, error)

var (
	muRegistry             sync.Mutex
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register backend with the given name, and a constructor that takes as input the options part of
// the configuration string.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// List the names of the registered backends, sorted.
func List() []string {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	names := make([]string, 0, len(registeredConstructors))
	for name := range registeredConstructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultConfig is the backend configuration used by New if the environment variable ConfigEnvVar is not set.
//
// See NewWithConfig for the format of the configuration string.
var DefaultConfig = "arith"

// ConfigEnvVar is the environment variable with the default backend configuration to use.
//
// The format of config is "<backend_name>:<backend_options>", see NewWithConfig.
const ConfigEnvVar = "RESHAPECHECK_BACKEND"

// DefaultConfigString returns the configuration New would use:
//
// 1. The environment variable ConfigEnvVar, if defined.
// 2. Next the variable DefaultConfig, if defined.
// 3. The first registered backend is used with an empty configuration.
func DefaultConfigString() string {
	if config, found := os.LookupEnv(ConfigEnvVar); found {
		return config
	}
	return DefaultConfig
}

// New returns a new Backend from the default configuration, see DefaultConfigString.
func New() (Backend, error) {
	return NewWithConfig(DefaultConfigString())
}

// NewWithConfig takes a configuration string formatted as "<backend_name>:<backend_options>".
//
// The "<backend_name>" is the name of a registered backend (e.g.: "arith" or "sat") and
// "<backend_options>" is backend specific, usually a comma-separated list of "key=value" pairs.
// If the backend name is empty, the first registered backend is used.
func NewWithConfig(config string) (Backend, error) {
	constructor, options, err := Lookup(config)
	if err != nil {
		return nil, err
	}
	return constructor(options)
}

// Lookup parses the configuration string and returns the constructor of the backend it names, along
// with the options to pass it.
func Lookup(config string) (constructor Constructor, options string, err error) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	if len(registeredConstructors) == 0 {
		return nil, "", errors.New(`no registered solver backends -- maybe import the default ones with ` +
			`import _ "github.com/gomlx/reshapecheck/pkg/core/solver/default"?`)
	}
	name, options, _ := strings.Cut(config, ":")
	if name == "" {
		name = firstRegistered
	}
	constructor, found := registeredConstructors[name]
	if !found {
		return nil, "", errors.Errorf("can't find solver backend %q for configuration %q given", name, config)
	}
	klog.V(2).Infof("solver backend %q selected with options %q", name, options)
	return constructor, options, nil
}
