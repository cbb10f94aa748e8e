package xmain

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"oss.terrastruct.com/xos"
)

// Opts declares flags whose defaults may come from environment variables.
// Flags win over the environment.
type Opts struct {
	Args  []string
	Flags *pflag.FlagSet
	env   *xos.Env

	envKeys []string
}

func NewOpts(env *xos.Env, args []string) *Opts {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.Usage = func() {}
	flags.SetOutput(io.Discard)
	return &Opts{
		Args:  args,
		Flags: flags,
		env:   env,
	}
}

// Parse parses Args. It reports whether --help was passed; any other parse
// failure is a UsageError.
func (o *Opts) Parse() (help bool, err error) {
	err = o.Flags.Parse(o.Args)
	if errors.Is(err, pflag.ErrHelp) {
		return true, nil
	}
	if err != nil {
		return false, UsageErrorf("failed to parse flags: %v", err)
	}
	return false, nil
}

func (o *Opts) Help() string {
	b := &strings.Builder{}
	o.Flags.SetOutput(b)
	o.Flags.PrintDefaults()
	o.Flags.SetOutput(io.Discard)

	if len(o.envKeys) > 0 {
		b.WriteString("\nYou may persistently set the following as environment variables (flags take precedent):\n")
		for i, k := range o.envKeys {
			fmt.Fprintf(b, "- $%s", k)
			if i != len(o.envKeys)-1 {
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}

func (o *Opts) getEnv(k string) string {
	if k == "" {
		return ""
	}
	o.envKeys = append(o.envKeys, k)
	return o.env.Getenv(k)
}

func (o *Opts) Int64(envKey, flag, shortFlag string, defaultVal int64, usage string) (*int64, error) {
	if env := o.getEnv(envKey); env != "" {
		envVal, err := strconv.ParseInt(env, 10, 64)
		if err != nil {
			return nil, fmt.Errorf(`invalid environment variable %s. Expected int64. Found "%s".`, envKey, env)
		}
		defaultVal = envVal
	}

	return o.Flags.Int64P(flag, shortFlag, defaultVal, usage), nil
}

func (o *Opts) String(envKey, flag, shortFlag string, defaultVal, usage string) *string {
	if env := o.getEnv(envKey); env != "" {
		defaultVal = env
	}

	return o.Flags.StringP(flag, shortFlag, defaultVal, usage)
}

func (o *Opts) Bool(envKey, flag, shortFlag string, defaultVal bool, usage string) (*bool, error) {
	if env := o.getEnv(envKey); env != "" {
		switch env {
		case "1", "true":
			defaultVal = true
		case "0", "false":
			defaultVal = false
		default:
			return nil, fmt.Errorf(`invalid environment variable %s. Expected bool. Found "%s".`, envKey, env)
		}
	}

	return o.Flags.BoolP(flag, shortFlag, defaultVal, usage), nil
}
