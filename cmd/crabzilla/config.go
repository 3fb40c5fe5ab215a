package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/andyherbert/crabzilla/hostfunc"
)

const defaultConfigPath = "crabzilla.toml"

// duration lets TOML carry values like "30s".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

func (d duration) Duration() time.Duration { return time.Duration(d) }

type mountConfig struct {
	Virtual string `toml:"virtual"`
	Host    string `toml:"host"`
	Mode    string `toml:"mode"`
}

func (mc mountConfig) toMount() (hostfunc.Mount, error) {
	mode := hostfunc.MountReadOnly
	if mc.Mode != "" {
		var err error
		mode, err = parseMountMode(mc.Mode)
		if err != nil {
			return hostfunc.Mount{}, err
		}
	}
	return hostfunc.Mount{VirtualPath: mc.Virtual, HostPath: mc.Host, Mode: mode}, nil
}

type fileConfig struct {
	Engine     string        `toml:"engine"`
	Timeout    duration      `toml:"timeout"`
	LogLevel   string        `toml:"log_level"`
	KV         bool          `toml:"kv"`
	AllowHosts []string      `toml:"allow_hosts"`
	Mounts     []mountConfig `toml:"mounts"`
}

// loadConfig reads a TOML config file. An explicitly named file must
// exist; the default path is optional.
func loadConfig(path string) (fileConfig, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	var cfg fileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return fileConfig{}, nil
		}
		return fileConfig{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fileConfig{}, fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}
