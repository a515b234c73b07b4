package cassandra

import (
	"context"
	"fmt"
	"sort"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"
)

// TableDesc is anything that can render its own CREATE TABLE statement.
type TableDesc interface {
	QualifiedName() string
	CreateStatement() string
}

// TableClient manages keyspaces and tables.
type TableClient struct {
	cfg     Config
	session *gocql.Session
}

func NewTableClient(cfg Config, session *gocql.Session) *TableClient {
	return &TableClient{
		cfg:     cfg,
		session: session,
	}
}

func createKeyspaceQuery(name, replication string) string {
	return fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH replication = %s", name, replication)
}

// CreateKeyspace creates the keyspace with the configured replication if it
// doesn't exist.
func (c *TableClient) CreateKeyspace(ctx context.Context, name string) error {
	err := c.session.Query(createKeyspaceQuery(name, c.cfg.replication())).WithContext(ctx).Exec()
	return errors.WithStack(err)
}

func dropKeyspaceQuery(name string) string {
	return fmt.Sprintf("DROP KEYSPACE IF EXISTS %s", name)
}

func (c *TableClient) DropKeyspace(ctx context.Context, name string) error {
	err := c.session.Query(dropKeyspaceQuery(name)).WithContext(ctx).Exec()
	return errors.WithStack(err)
}

// ListTables returns the table names of keyspace in order. A missing keyspace
// has no tables.
func (c *TableClient) ListTables(_ context.Context, keyspace string) ([]string, error) {
	md, err := c.session.KeyspaceMetadata(keyspace)
	if errors.Is(err, gocql.ErrKeyspaceDoesNotExist) {
		return []string{}, nil
	} else if err != nil {
		return nil, errors.WithStack(err)
	}
	return tableNames(md), nil
}

func tableNames(md *gocql.KeyspaceMetadata) []string {
	result := []string{}
	for name := range md.Tables {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

func (c *TableClient) CreateTable(ctx context.Context, desc TableDesc) error {
	err := c.session.Query(desc.CreateStatement()).WithContext(ctx).Exec()
	return errors.Wrapf(err, "creating %s", desc.QualifiedName())
}

func dropTableQuery(desc TableDesc) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", desc.QualifiedName())
}

func (c *TableClient) DropTable(ctx context.Context, desc TableDesc) error {
	err := c.session.Query(dropTableQuery(desc)).WithContext(ctx).Exec()
	return errors.WithStack(err)
}

func (c *TableClient) TruncateTable(ctx context.Context, desc TableDesc) error {
	err := c.session.Query(fmt.Sprintf("TRUNCATE %s", desc.QualifiedName())).WithContext(ctx).Exec()
	return errors.WithStack(err)
}

// ReleaseVersion returns the Cassandra version of the coordinator.
func (c *TableClient) ReleaseVersion(ctx context.Context) (string, error) {
	var version string
	err := c.session.Query("SELECT release_version FROM system.local").WithContext(ctx).Scan(&version)
	return version, errors.WithStack(err)
}
