package cassandra

import (
	"flag"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/grafana/dskit/backoff"
	"github.com/grafana/dskit/flagext"
	"github.com/pkg/errors"
)

const (
	SimpleStrategy          = "SimpleStrategy"
	NetworkTopologyStrategy = "NetworkTopologyStrategy"
)

// Config for a Cassandra session.
type Config struct {
	Addresses                flagext.StringSliceCSV `yaml:"addresses"`
	Port                     int                    `yaml:"port"`
	Keyspace                 string                 `yaml:"keyspace"`
	Consistency              string                 `yaml:"consistency"`
	LocalDC                  string                 `yaml:"local_dc"`
	ReplicationStrategy      string                 `yaml:"replication_strategy"`
	ReplicationFactor        int                    `yaml:"replication_factor"`
	DisableInitialHostLookup bool                   `yaml:"disable_initial_host_lookup"`
	SSL                      bool                   `yaml:"ssl"`
	HostVerification         bool                   `yaml:"host_verification"`
	CAPath                   string                 `yaml:"ca_path"`
	Auth                     bool                   `yaml:"auth"`
	Username                 string                 `yaml:"username"`
	Password                 flagext.Secret         `yaml:"password"`
	Timeout                  time.Duration          `yaml:"timeout"`
	ConnectTimeout           time.Duration          `yaml:"connect_timeout"`
	NumConnections           int                    `yaml:"num_connections"`
	ReconnectInterval        time.Duration          `yaml:"reconnect_interval"`
	ReconnectMaxInterval     time.Duration          `yaml:"reconnect_max_interval"`
	ReconnectMaxRetries      int                    `yaml:"reconnect_max_retries"`
	QueryRetries             int                    `yaml:"query_retries"`
	Tracing                  bool                   `yaml:"tracing"`
	MaxConcurrentWrites      int                    `yaml:"max_concurrent_writes"`
	BatchSize                int                    `yaml:"batch_size"`

	Retry backoff.Config `yaml:"retry"`
}

// RegisterFlags adds the flags required to config this to the given FlagSet
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.Addresses = flagext.StringSliceCSV{"127.0.0.1"}
	f.Var(&cfg.Addresses, "cassandra.addresses", "Comma-separated hostnames or ips of Cassandra instances.")
	f.IntVar(&cfg.Port, "cassandra.port", 9042, "Port that Cassandra is running on")
	f.StringVar(&cfg.Keyspace, "cassandra.keyspace", "bank", "Keyspace the walkthrough tables live in.")
	f.StringVar(&cfg.Consistency, "cassandra.consistency", "LOCAL_ONE", "Default consistency level for Cassandra.")
	f.StringVar(&cfg.LocalDC, "cassandra.local-dc", "DC1", "Data center queries are routed to. Empty disables DC aware routing.")
	f.StringVar(&cfg.ReplicationStrategy, "cassandra.replication-strategy", NetworkTopologyStrategy, "Replication strategy of created keyspaces: SimpleStrategy or NetworkTopologyStrategy.")
	f.IntVar(&cfg.ReplicationFactor, "cassandra.replication-factor", 3, "Replication factor of created keyspaces. With NetworkTopologyStrategy it applies to the local DC.")
	f.BoolVar(&cfg.DisableInitialHostLookup, "cassandra.disable-initial-host-lookup", false, "Instruct the cassandra driver to not attempt to get host info from the system.peers table.")
	f.BoolVar(&cfg.SSL, "cassandra.ssl", false, "Use SSL when connecting to cassandra instances.")
	f.BoolVar(&cfg.HostVerification, "cassandra.host-verification", true, "Require SSL certificate validation.")
	f.StringVar(&cfg.CAPath, "cassandra.ca-path", "", "Path to certificate file to verify the peer.")
	f.BoolVar(&cfg.Auth, "cassandra.auth", false, "Enable password authentication when connecting to cassandra.")
	f.StringVar(&cfg.Username, "cassandra.username", "", "Username to use when connecting to cassandra.")
	f.Var(&cfg.Password, "cassandra.password", "Password to use when connecting to cassandra.")
	f.DurationVar(&cfg.Timeout, "cassandra.timeout", 2*time.Second, "Timeout of a single request to cassandra.")
	f.DurationVar(&cfg.ConnectTimeout, "cassandra.connect-timeout", 5*time.Second, "Timeout when connecting to cassandra.")
	f.IntVar(&cfg.NumConnections, "cassandra.num-connections", 2, "Number of TCP connections per host.")
	f.DurationVar(&cfg.ReconnectInterval, "cassandra.reconnect-interval", time.Second, "Initial interval between reconnection attempts to a down host.")
	f.DurationVar(&cfg.ReconnectMaxInterval, "cassandra.reconnect-max-interval", 1600*time.Millisecond, "Upper bound of the interval between reconnection attempts.")
	f.IntVar(&cfg.ReconnectMaxRetries, "cassandra.reconnect-max-retries", 10, "Reconnection attempts before a host is given up on.")
	f.IntVar(&cfg.QueryRetries, "cassandra.query-retries", 0, "Number of retries the driver makes for a failed query before returning.")
	f.BoolVar(&cfg.Tracing, "cassandra.tracing", false, "Request server side tracing of writes and log the trace.")
	f.IntVar(&cfg.MaxConcurrentWrites, "cassandra.max-concurrent-writes", 16, "Maximum number of asynchronous inserts in flight.")
	f.IntVar(&cfg.BatchSize, "cassandra.batch-size", 0, "Rows per logged batch in batch load mode. 0 puts every row in one batch.")

	cfg.Retry.RegisterFlagsWithPrefix("cassandra.retry", f)
}

// Validate the config.
func (cfg *Config) Validate() error {
	if len(cfg.Addresses) == 0 {
		return errors.New("no cassandra addresses configured")
	}
	if cfg.Keyspace == "" {
		return errors.New("cassandra keyspace is required")
	}
	if _, err := gocql.ParseConsistencyWrapper(cfg.Consistency); err != nil {
		return errors.Wrap(err, "invalid cassandra consistency")
	}
	switch cfg.ReplicationStrategy {
	case SimpleStrategy:
	case NetworkTopologyStrategy:
		if cfg.LocalDC == "" {
			return errors.New("NetworkTopologyStrategy needs a local DC")
		}
	default:
		return errors.Errorf("unknown replication strategy %q", cfg.ReplicationStrategy)
	}
	if cfg.ReplicationFactor < 1 {
		return errors.New("replication factor must be at least 1")
	}
	if cfg.Auth && cfg.Username == "" {
		return errors.New("cassandra auth needs a username")
	}
	if cfg.ReconnectMaxInterval < cfg.ReconnectInterval {
		return errors.New("reconnect max interval must not be below the reconnect interval")
	}
	if cfg.MaxConcurrentWrites < 1 {
		return errors.New("max concurrent writes must be at least 1")
	}
	if cfg.BatchSize < 0 {
		return errors.New("batch size must not be negative")
	}
	return nil
}

// replication returns the replication map of created keyspaces.
func (cfg *Config) replication() string {
	if cfg.ReplicationStrategy == NetworkTopologyStrategy {
		return fmt.Sprintf("{'class': '%s', '%s': %d}", NetworkTopologyStrategy, cfg.LocalDC, cfg.ReplicationFactor)
	}
	return fmt.Sprintf("{'class': '%s', 'replication_factor': %d}", SimpleStrategy, cfg.ReplicationFactor)
}

// Session opens a session. Statements are expected to qualify their tables
// with a keyspace, so the session itself is not bound to one.
func (cfg *Config) Session(metrics *Metrics) (*gocql.Session, error) {
	consistency, err := gocql.ParseConsistencyWrapper(cfg.Consistency)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cluster := gocql.NewCluster(cfg.Addresses...)
	cluster.Port = cfg.Port
	cluster.Consistency = consistency
	cluster.Timeout = cfg.Timeout
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.NumConns = cfg.NumConnections
	cluster.ReconnectionPolicy = cfg.reconnectionPolicy()
	if cfg.QueryRetries > 0 {
		cluster.RetryPolicy = &gocql.SimpleRetryPolicy{NumRetries: cfg.QueryRetries}
	}
	if cfg.LocalDC != "" {
		cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.DCAwareRoundRobinPolicy(cfg.LocalDC))
	}
	if metrics != nil {
		obs := observer{metrics: metrics}
		cluster.QueryObserver = obs
		cluster.BatchObserver = obs
	}
	cfg.setClusterConfig(cluster)

	session, err := cluster.CreateSession()
	return session, errors.WithStack(err)
}

func (cfg *Config) reconnectionPolicy() *gocql.ExponentialReconnectionPolicy {
	return &gocql.ExponentialReconnectionPolicy{
		MaxRetries:      cfg.ReconnectMaxRetries,
		InitialInterval: cfg.ReconnectInterval,
		MaxInterval:     cfg.ReconnectMaxInterval,
	}
}

// apply config settings to a cassandra ClusterConfig
func (cfg *Config) setClusterConfig(cluster *gocql.ClusterConfig) {
	cluster.DisableInitialHostLookup = cfg.DisableInitialHostLookup

	if cfg.SSL {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 cfg.CAPath,
			EnableHostVerification: cfg.HostVerification,
		}
	}
	if cfg.Auth {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password.String(),
		}
	}
}
