// Copyright (c) 2023 Colin McRae

// Package config maps the recognized qsieve options onto a viper
// configuration file, so the CLI and embedding programs share one set
// of defaults.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/SoftSec-KAIST/Smartian-Dirichlet/qsieve"
)

const configName = "qsieve"

func setDefaults(v *viper.Viper) {
	v.SetDefault("threads", 0)
	v.SetDefault("factor_base_size", 0)
	v.SetDefault("lower_bound_percent", 85)
	v.SetDefault("interval_size", 200_000)
	v.SetDefault("multiplier", 1)
	v.SetDefault("threshold_exponent", 2.0)
	v.SetDefault("process_partial_relations", true)
	v.SetDefault("merge_limit", 8)
	v.SetDefault("sieve_time_limit", "0s")
	v.SetDefault("reporting_interval", "10s")
}

// Load reads qsieve.yaml from path (or, when path is empty, from the
// working directory and the user config directory) and returns the
// resulting options. When path is empty, a missing file is not an
// error: the defaults apply. A missing explicit path is an error.
func Load(path string) (qsieve.Options, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName(configName)
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", configName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return qsieve.Options{}, err
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return qsieve.Options{}, err
		}
	}

	return qsieve.Options{
		Threads:                 v.GetInt("threads"),
		FactorBaseSize:          v.GetInt("factor_base_size"),
		LowerBoundPercent:       v.GetInt("lower_bound_percent"),
		IntervalSize:            v.GetInt("interval_size"),
		Multiplier:              v.GetUint64("multiplier"),
		ThresholdExponent:       v.GetFloat64("threshold_exponent"),
		ProcessPartialRelations: v.GetBool("process_partial_relations"),
		MergeLimit:              v.GetInt("merge_limit"),
		SieveTimeLimit:          v.GetDuration("sieve_time_limit"),
		ReportingInterval:       v.GetDuration("reporting_interval"),
	}, nil
}
