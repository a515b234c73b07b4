package cfg

import (
	"flag"
	"io"
	"os"
	"strings"

	"github.com/drone/envsubst"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// YAML loads the file at path. Unknown fields are an error. With expandEnv
// set, ${VAR} references are replaced from the environment first.
func YAML(path string, expandEnv bool) Source {
	return func(dst interface{}) error {
		buf, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(err, "Error reading config file")
		}
		if expandEnv {
			s, err := envsubst.EvalEnv(string(buf))
			if err != nil {
				return errors.Wrap(err, "expanding environment variables")
			}
			buf = []byte(s)
		}
		return dYAML(buf)(dst)
	}
}

// dYAML parses raw YAML bytes.
func dYAML(y []byte) Source {
	return func(dst interface{}) error {
		return errors.Wrap(yaml.UnmarshalStrict(y, dst), "parsing YAML")
	}
}

// ConfigFileLoader loads the file named by the -<name> flag in args, if any.
// Environment expansion defaults to expandEnvDefault and can be changed with
// -config.expand-env.
func ConfigFileLoader(args []string, name string, expandEnvDefault bool) Source {
	return func(dst interface{}) error {
		fs := flag.NewFlagSet("config-file-loader", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		file := fs.String(name, "", "")
		expandEnv := fs.Bool("config.expand-env", expandEnvDefault, "")

		// Ignore everything except our two flags.
		var filtered []string
		for i := 0; i < len(args); i++ {
			a := strings.TrimLeft(args[i], "-")
			if strings.HasPrefix(a, name) || strings.HasPrefix(a, "config.expand-env") {
				filtered = append(filtered, args[i])
				if !strings.Contains(a, "=") && strings.HasPrefix(a, name) && i+1 < len(args) {
					filtered = append(filtered, args[i+1])
					i++
				}
			}
		}
		if err := fs.Parse(filtered); err != nil {
			return errors.Wrap(err, "parsing config file flags")
		}
		if *file == "" {
			return nil
		}
		return YAML(*file, *expandEnv)(dst)
	}
}
