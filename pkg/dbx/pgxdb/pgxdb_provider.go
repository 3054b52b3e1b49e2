// Package pgxdb adapts a pgx connection pool to the connection provider,
// connection and dialect interfaces of the database facade.
package pgxdb

import (
	"context"
	"fmt"
	"runtime"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/globalbus/dalesbred/pkg/dbx"
	"github.com/globalbus/dalesbred/pkg/dbx/types"
	"github.com/globalbus/dalesbred/pkg/errorx"
	"github.com/globalbus/dalesbred/pkg/logx"
	"github.com/globalbus/dalesbred/pkg/validator"
)

//###################################
//#   Postgres Connection Provider  #
//###################################

// PostgresProvider - pgxpool-backed connection provider.
// It implements types.ConnectionProvider.
type PostgresProvider struct {
	pool   *pgxpool.Pool
	dbConf types.ConnConfig
}

// SetupPostgresProvider - setup a Postgres connection provider on a new
// connection pool.
//
// Arguments:
//   - ctx: context used for pool creation.
//   - dbConf: connection configuration; validated before any connection attempt.
//   - preparedStatements: statements prepared on every new pool connection.
//
// Returns:
//   - *PostgresProvider: a provider ready to hand out connections.
//   - error: configuration validation or pool creation failure.
func SetupPostgresProvider(ctx context.Context, dbConf types.ConnConfig, preparedStatements ...types.PreparedStatement) (*PostgresProvider, error) {
	pool, err := newConnectionPool(ctx, dbConf, preparedStatements...)
	if err != nil {
		return nil, err
	}

	logx.
		GetLogger().
		LogInfo(ctx, fmt.Sprintf("Created new Postgres Connection Pool: DB=%s, HOST=%s, PORT=%d",
			pool.Config().ConnConfig.Database,
			pool.Config().ConnConfig.Host,
			pool.Config().ConnConfig.Port))

	return &PostgresProvider{
		pool:   pool,
		dbConf: dbConf,
	}, nil
}

// NewProviderForPool wraps an existing pgx connection pool in a provider. The
// caller keeps ownership of the pool.
func NewProviderForPool(pool *pgxpool.Pool) *PostgresProvider {
	return &PostgresProvider{pool: pool}
}

// NewDatabaseForPool creates a Database facade directly on an existing pgx
// connection pool, with the Postgres dialect.
func NewDatabaseForPool(pool *pgxpool.Pool) *dbx.Database {
	return dbx.NewDatabase(NewProviderForPool(pool), NewPostgresDialect())
}

func newConnectionPool(ctx context.Context, dbConf types.ConnConfig, preparedStatements ...types.PreparedStatement) (*pgxpool.Pool, error) {
	poolConfig, err := createConnectionConfiguration(dbConf)
	if err != nil {
		return nil, err
	}

	// Setup prepared statements
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return setupPreparedStatements(ctx, conn, preparedStatements...)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "Error creating New Connection Pool")
	}

	return pool, nil
}

func createConnectionConfiguration(dbConf types.ConnConfig) (*pgxpool.Config, error) {
	if validationErrors := validator.NewValidator().ValidateStruct(dbConf); len(validationErrors) > 0 {
		return nil, errorx.NewConfigurationErrorWrapper(
			validator.NewValidationError(validationErrors), "invalid connection configuration")
	}

	poolConfig, _ := pgxpool.ParseConfig("")

	poolConfig.ConnConfig.Database = dbConf.DBName
	poolConfig.ConnConfig.User = dbConf.User
	poolConfig.ConnConfig.Password = dbConf.Password
	poolConfig.ConnConfig.Host = dbConf.Host
	poolConfig.ConnConfig.Port = uint16(dbConf.Port)

	if dbConf.MaxConn > 0 {
		poolConfig.MaxConns = int32(runtime.NumCPU()) * dbConf.MaxConn
		poolConfig.MinConns = int32(runtime.NumCPU())
	}

	return poolConfig, nil
}

func setupPreparedStatements(ctx context.Context, conn *pgx.Conn, preparedStatements ...types.PreparedStatement) error {
	for _, stmt := range preparedStatements {
		_, err := conn.Prepare(ctx, stmt.GetName(), stmt.GetQuery())
		if err != nil {
			return errorx.NewDatabaseErrorWrapper(err, "Failed to prepare statement '%s'", stmt.GetName())
		}
	}

	return nil
}

// Acquire - get a connection from the pool, wrapped for the facade.
func (p *PostgresProvider) Acquire(ctx context.Context) (types.Connection, error) {
	if p.pool == nil {
		return nil, errorx.NewDatabaseError("error, Connection Pool To DB not initialized")
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		logx.GetLogger().LogError(ctx, "Error acquiring connection from pool", err)

		return nil, errorx.NewDatabaseErrorWrapper(err, "Error acquiring connection from pool")
	}

	return &PostgresConnection{conn: conn}, nil
}

// Release - return a connection to the pool. A transaction still open on the
// connection is rolled back first so the connection goes back clean.
func (p *PostgresProvider) Release(ctx context.Context, conn types.Connection) error {
	pgConn, ok := conn.(*PostgresConnection)
	if !ok {
		return errorx.NewDatabaseError("cannot release a connection not acquired from this provider")
	}

	if pgConn.tx != nil {
		if err := pgConn.tx.Rollback(ctx); err != nil && !isTxClosed(err) {
			logx.GetLogger().LogError(ctx, "error rolling back abandoned transaction on release", err)
		}

		pgConn.tx = nil
	}

	pgConn.conn.Release()

	return nil
}

// GetConnectionConfig - get the connection config the provider was built with.
func (p *PostgresProvider) GetConnectionConfig() types.ConnConfig {
	return p.dbConf
}

// GetDbConnPool - get the underlying connection pool.
func (p *PostgresProvider) GetDbConnPool() (*pgxpool.Pool, error) {
	if p.pool == nil {
		return nil, errorx.NewDatabaseError("error, Connection Pool To DB not initialized")
	}

	return p.pool, nil
}

// Close - close the connection pool.
func (p *PostgresProvider) Close() {
	if p.pool != nil {
		p.pool.Close()
		logx.GetLogger().LogInfo(context.TODO(), "DB Connection Pool Successfully Closed!")
	}
}

func isTxClosed(err error) bool {
	return err == pgx.ErrTxClosed
}
