package cfg

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type Server struct {
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

type TLS struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type Data struct {
	Verbose bool   `yaml:"verbose"`
	Server  Server `yaml:"server"`
	TLS     TLS    `yaml:"tls"`
}

func (d *Data) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&d.Verbose, "verbose", false, "")
	fs.IntVar(&d.Server.Port, "server.port", 80, "")
	fs.DurationVar(&d.Server.Timeout, "server.timeout", 60*time.Second, "")
	fs.StringVar(&d.TLS.Cert, "cert", "CERT", "")
	fs.StringVar(&d.TLS.Key, "key", "KEY", "")
}

func TestDefaults(t *testing.T) {
	var d Data
	require.NoError(t, Unmarshal(&d, Defaults(flag.NewFlagSet(t.Name(), flag.ContinueOnError))))
	require.Equal(t, Data{
		Server: Server{Port: 80, Timeout: 60 * time.Second},
		TLS:    TLS{Cert: "CERT", Key: "KEY"},
	}, d)
}

func TestParse(t *testing.T) {
	var c Data
	fs := flag.NewFlagSet(t.Name(), flag.ContinueOnError)
	err := Unmarshal(&c,
		Defaults(fs),
		dYAML([]byte(`
server:
  port: 2000
  timeout: 60h
tls:
  key: YAML
`)),
		Flags([]string{"-verbose", "-server.port=21"}, fs),
	)
	require.NoError(t, err)
	require.Equal(t, Data{
		Verbose: true,
		Server:  Server{Port: 21, Timeout: 60 * time.Hour},
		TLS:     TLS{Cert: "CERT", Key: "YAML"},
	}, c)
}

func TestDefaultUnmarshalWithConfigFile(t *testing.T) {
	t.Setenv("CQLWALK_TEST_KEY", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tls:\n  key: ${CQLWALK_TEST_KEY}\nserver:\n  port: 9042\n"), 0o600))

	var c Data
	err := DefaultUnmarshal(&c, []string{"-config.file", path, "-server.timeout=5s"}, flag.NewFlagSet(t.Name(), flag.ContinueOnError))
	require.NoError(t, err)
	require.Equal(t, Data{
		Server: Server{Port: 9042, Timeout: 5 * time.Second},
		TLS:    TLS{Cert: "CERT", Key: "from-env"},
	}, c)
}

func TestYAMLRejectsUnknownFields(t *testing.T) {
	var c Data
	err := Unmarshal(&c, dYAML([]byte("unknown: true\n")))
	require.Error(t, err)
}
