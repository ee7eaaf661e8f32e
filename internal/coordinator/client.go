package coordinator

import (
	"context"

	"github.com/oracleplane/oracleplane/database/oracle"
	"github.com/oracleplane/oracleplane/internal/model"
)

// OracleClient is the subset of database/oracle.Client the Coordinator
// depends on, narrowed to an interface so tests can substitute a fake
// catalog/executor without a live Oracle instance.
type OracleClient interface {
	ListUsers(ctx context.Context) ([]string, error)
	ListObjects(ctx context.Context, opts oracle.ListObjectsOptions) ([]model.Object, error)
	Execute(ctx context.Context, stmt string) error
	Ping(ctx context.Context) error
	Close() error
}

// Connector opens an OracleClient for a stored Connection. In production
// this is oracle.Connect; tests inject a fake.
type Connector func(ctx context.Context, conn model.Connection) (OracleClient, error)

// DefaultConnector adapts database/oracle.Connect to the Connector shape.
func DefaultConnector(ctx context.Context, conn model.Connection) (OracleClient, error) {
	return oracle.Connect(ctx, conn.Username, conn.Password, conn.ConnectionString)
}
