package cfg

import (
	"flag"

	"github.com/pkg/errors"
)

// Source is a generic configuration source. It is passed a pointer to the
// destination and may overwrite values written by previous sources.
type Source func(interface{}) error

// Registerer is a config that knows how to register its flags.
type Registerer interface {
	RegisterFlags(*flag.FlagSet)
}

// Unmarshal applies the sources to dst in order.
func Unmarshal(dst interface{}, sources ...Source) error {
	if len(sources) == 0 {
		panic("No sources supplied to cfg.Unmarshal(). This is most likely a programming issue and should never happen. Check the code!")
	}
	for _, source := range sources {
		if err := source(dst); err != nil {
			return errors.Wrap(err, "sourcing")
		}
	}
	return nil
}

// DefaultUnmarshal loads flag defaults, then the file named by -config.file,
// then the command line flags.
func DefaultUnmarshal(dst Registerer, args []string, fs *flag.FlagSet) error {
	return Unmarshal(dst,
		Defaults(fs),
		ConfigFileLoader(args, "config.file", true),
		Flags(args, fs),
	)
}
