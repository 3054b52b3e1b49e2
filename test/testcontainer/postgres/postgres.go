package postgres

import (
	"context"
	"fmt"

	"github.com/docker/go-connections/nat"

	"log"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/globalbus/dalesbred/pkg/dbx/pgxdb"
	"github.com/globalbus/dalesbred/pkg/dbx/types"
	"github.com/globalbus/dalesbred/pkg/logx"
	"github.com/globalbus/dalesbred/test"
)

const (
	postgresContainerImage = "docker.io/postgres:16-alpine"
	postgresContainerPort  = "5432/tcp"

	MainDbName     = "main-db"
	MainDbUser     = "postgres"
	MainDbPassword = "password"
)

// PostgresContainer represents the postgres Container type used in the module.
type PostgresContainer struct {
	Container      *postgres.PostgresContainer
	MappedPort     nat.Port
	Host           string
	DbName         string
	DbUser         string
	DbPassword     string
	PrepStatements []types.PreparedStatement
}

const TestSnapshotId = "test-snapshot"

func StartPostgresContainerWithInitScript(ctx context.Context, t *testing.T, initScriptPath string, preparedStatements []types.PreparedStatement) *PostgresContainer {
	test.ConfigTestRootPath()

	pg, err := postgres.Run(ctx,
		postgresContainerImage,
		postgres.WithInitScripts(filepath.Clean(initScriptPath)),
		postgres.WithDatabase(MainDbName),
		postgres.WithUsername(MainDbUser),
		postgres.WithPassword(MainDbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(10*time.Second),
		),
	)

	require.NoError(t, err)
	require.NotNil(t, pg)

	err = pg.Start(ctx)
	require.NoError(t, err)

	mappedPort, err := pg.MappedPort(ctx, postgresContainerPort)
	require.NoError(t, err)

	host, err := pg.Host(ctx)
	require.NoError(t, err)

	log.Printf("Postgres running at %s:%s", host, mappedPort.Port())

	// Create a snapshot of the database to restore later
	err = pg.Snapshot(ctx, postgres.WithSnapshotName(TestSnapshotId))
	require.NoError(t, err)

	return &PostgresContainer{
		Container:      pg,
		MappedPort:     mappedPort,
		Host:           host,
		DbName:         MainDbName,
		DbUser:         MainDbUser,
		DbPassword:     MainDbPassword,
		PrepStatements: preparedStatements,
	}
}

// StartPostgresContainer - create and start a postgres container seeded with
// the default schema.
func StartPostgresContainer(ctx context.Context, t *testing.T, preparedStatements []types.PreparedStatement) *PostgresContainer {
	return StartPostgresContainerWithInitScript(ctx, t,
		filepath.Join("test/testcontainer/postgres", "init_schema.sql"), preparedStatements)
}

func (c *PostgresContainer) StopContainer(ctx context.Context, t *testing.T) error {
	logx.GetLogger().LogInfo(ctx, "Terminating the Container ....")

	// Define a timeout duration, for example, 10 seconds
	timeout := time.Second * 3

	// Pass the pointer to the duration (use &timeout)
	err := c.Container.Stop(ctx, &timeout)

	// Check for error when stopping the container
	if err != nil {
		require.NoError(t, err, fmt.Sprintf("error stopping the Container %v", err))
		return err
	}

	// Return nil if everything was successful
	return nil
}

// SetupConnectionProvider - create a connection provider against the container.
func (c *PostgresContainer) SetupConnectionProvider(ctx context.Context, t *testing.T) *pgxdb.PostgresProvider {
	dbConf := types.ConnConfig{
		IsLocalEnv: true,
		Host:       c.Host,
		Port:       int32(c.MappedPort.Int()),
		DBName:     c.DbName,
		User:       c.DbUser,
		Password:   c.DbPassword,
		MaxConn:    1,
	}

	provider, err := pgxdb.SetupPostgresProvider(ctx, dbConf, c.PrepStatements...)
	require.NoError(t, err)

	return provider
}
