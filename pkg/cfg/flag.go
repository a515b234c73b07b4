package cfg

import (
	"flag"
	"io"

	"github.com/pkg/errors"
)

// Defaults registers the flags of dst on fs, which sets every field to its
// flag default.
func Defaults(fs *flag.FlagSet) Source {
	return func(dst interface{}) error {
		r, ok := dst.(Registerer)
		if !ok {
			return errors.Errorf("%T does not implement RegisterFlags", dst)
		}
		r.RegisterFlags(fs)
		return nil
	}
}

// Flags parses args into the flags registered on fs. The config file flag is
// accepted and ignored so the same args can be passed to every source.
func Flags(args []string, fs *flag.FlagSet) Source {
	return func(interface{}) error {
		if fs.Lookup("config.file") == nil {
			fs.String("config.file", "", "Configuration file to load.")
			fs.Bool("config.expand-env", false, "Expands ${var} or $var in config according to the values of the environment variables.")
		}
		fs.SetOutput(io.Discard)
		return errors.Wrap(fs.Parse(args), "parsing flags")
	}
}
