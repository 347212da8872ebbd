package process

import (
	"errors"
	"fmt"
	"sort"
)

// Command is an external program the runner may start.
type Command struct {
	Command string            `yaml:"command" json:"command" env:"COMMAND"`
	Args    []string          `yaml:"args" json:"args" env:"ARGS" envSeparator:" "`
	Env     map[string]string `yaml:"env" json:"env"`
}

// Enabled reports whether a program is configured.
func (c Command) Enabled() bool {
	return c.Command != ""
}

// Validate rejects arguments without a program and environment keys that
// would clash with the ones the runner sets.
func (c Command) Validate() error {
	if c.Command == "" && len(c.Args) > 0 {
		return errors.New("args given without a command")
	}
	for k := range c.Env {
		if k == "" {
			return errors.New("empty environment variable name")
		}
		if k == EnvHook || k == EnvDefinition {
			return fmt.Errorf("environment variable %s is reserved", k)
		}
	}
	return nil
}

func (c Command) environ() []string {
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+c.Env[k])
	}
	return out
}
