// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package config reads run settings from a YAML, JSON or TOML file into
// pipeline.Opts. Keys follow the mapstructure tags of the option structs, e.g.
//
//   parallelism: 8
//   discordant:
//     min_per_cluster: 3
//
// Settings absent from the file keep the values already in the options.
package config

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/sv/pipeline"
	"github.com/spf13/viper"
)

// Load reads the settings file at path into opts.
func Load(path string, opts *pipeline.Opts) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errors.E(errors.Invalid, err, "reading settings", path)
	}
	if err := v.Unmarshal(opts); err != nil {
		return errors.E(errors.Invalid, err, "decoding settings", path)
	}
	return nil
}
