package db

import (
	"context"
	"fmt"
	"time"

	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

/*
GetSqliteDialector define Sqlite GORM dialector

Write transactions are started with BEGIN IMMEDIATE so that concurrent writers queue on the
database lock (bounded by busy timeout) instead of failing on lock upgrade.

	@param dbFile string - Sqlite DB file
	@param busyTimeout time.Duration - how long to wait on a locked database
	@return GORM sqlite dialector
*/
func GetSqliteDialector(dbFile string, busyTimeout time.Duration) gorm.Dialector {
	return sqlite.Open(
		fmt.Sprintf(
			"%s?_foreign_keys=on&_busy_timeout=%d&_txlock=immediate",
			dbFile,
			busyTimeout.Milliseconds(),
		),
	)
}

/*
GetPostgresDialector define PostgreSQL GORM dialector

	@param dsn string - PostgreSQL DSN
	@return GORM postgres dialector
*/
func GetPostgresDialector(dsn string) gorm.Dialector {
	return postgres.Open(dsn)
}

// Client manages connections and transactions with a DB
type Client interface {
	/*
		RunSQLInTransaction execute SQL calls within a transaction

			@param ctx context.Context - execution context
			@param coreLogic func(ctx context.Context, tx *gorm.DB) error - the callback to execute
	*/
	RunSQLInTransaction(
		ctx context.Context, coreLogic func(ctx context.Context, tx *gorm.DB) error,
	) error

	/*
		UseDatabase utilize a `Database` instance

			@param ctx context.Context - execution context
			@param coreLogic func(ctx context.Context, dbClient Database) error - the callback to execute
	*/
	UseDatabase(
		ctx context.Context, coreLogic func(ctx context.Context, dbClient Database) error,
	) error

	/*
		UseDatabaseInTransaction utilize a `Database` instance in a transaction

			@param ctx context.Context - execution context
			@param coreLogic func(ctx context.Context, dbClient Database) error - the callback to execute
	*/
	UseDatabaseInTransaction(
		ctx context.Context, coreLogic func(ctx context.Context, dbClient Database) error,
	) error

	/*
		UseDatabaseInLockedTransaction utilize a `Database` instance in a transaction which
		holds the lease on one secret for its entire duration.

		Calls against the same secret ID are serialized; calls against different IDs are not.
		If the lease can not be acquired within the lock timeout, ErrStoreContention is
		returned and `coreLogic` is not called.

			@param ctx context.Context - execution context
			@param secretID string - the secret to lock
			@param coreLogic func(ctx context.Context, dbClient Database) error - the callback to execute
	*/
	UseDatabaseInLockedTransaction(
		ctx context.Context,
		secretID string,
		coreLogic func(ctx context.Context, dbClient Database) error,
	) error

	/*
		Close release the underlying connection pool
	*/
	Close() error
}

// ConnectionParams SQL client parameters
type ConnectionParams struct {
	// Dialector GORM dialector
	Dialector gorm.Dialector `validate:"required"`
	// LogLevel SQL log level
	LogLevel logger.LogLevel `validate:"-"`
	// Leases per-secret lease provider. Defaults to an in-process lease.
	Leases LeaseProvider `validate:"-"`
	// LockTimeout how long an unlock may wait for the lease on a secret
	LockTimeout time.Duration `validate:"gt=0"`
}

// clientImpl implements Client
type clientImpl struct {
	goutils.Component
	db          *gorm.DB
	leases      LeaseProvider
	lockTimeout time.Duration
}

// DefaultLockTimeout default per-secret lease acquisition timeout
const DefaultLockTimeout = time.Second * 5

/*
NewConnection define a new SQL client

	@param dbDialector gorm.Dialector - GORM dialector
	@param dbLogLevel logger.LogLevel - SQL log level
	@return new client
*/
func NewConnection(dbDialector gorm.Dialector, dbLogLevel logger.LogLevel) (Client, error) {
	return NewConnectionWithParams(ConnectionParams{
		Dialector: dbDialector, LogLevel: dbLogLevel, LockTimeout: DefaultLockTimeout,
	})
}

/*
NewConnectionWithParams define a new SQL client

	@param params ConnectionParams - client parameters
	@return new client
*/
func NewConnectionWithParams(params ConnectionParams) (Client, error) {
	logTags := log.Fields{"package": "secretshare", "module": "db", "component": "sql-client"}

	if params.Dialector == nil {
		return nil, fmt.Errorf("no GORM dialector provided")
	}
	if params.LockTimeout <= 0 {
		params.LockTimeout = DefaultLockTimeout
	}
	if params.Leases == nil {
		params.Leases = NewLocalLeaseProvider()
	}

	db, err := gorm.Open(params.Dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(params.LogLevel),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect with DB [%w]", err)
	}

	instance := &clientImpl{
		Component: goutils.Component{
			LogTags: logTags,
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		db:          db,
		leases:      params.Leases,
		lockTimeout: params.LockTimeout,
	}

	return instance, nil
}

// Close release the underlying connection pool
func (c *clientImpl) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access connection pool [%w]", err)
	}
	return sqlDB.Close()
}

/*
RunSQLInTransaction execute SQL calls within a transaction

	@param ctx context.Context - execution context
	@param coreLogic func(ctx context.Context, tx *gorm.DB) error - the callback to execute
*/
func (c *clientImpl) RunSQLInTransaction(
	ctx context.Context, coreLogic func(ctx context.Context, tx *gorm.DB) error,
) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return coreLogic(ctx, tx)
	})
}

/*
UseDatabase utilize a `Database` instance

	@param ctx context.Context - execution context
	@param coreLogic func(ctx context.Context, dbClient Database) error - the callback to execute
*/
func (c *clientImpl) UseDatabase(
	ctx context.Context, coreLogic func(ctx context.Context, dbClient Database) error,
) error {
	dbClient, err := newDatabase(ctx, c.db.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to define `Database` instance: [%w]", err)
	}
	return coreLogic(ctx, dbClient)
}

/*
UseDatabaseInTransaction utilize a `Database` instance in a transaction

	@param ctx context.Context - execution context
	@param coreLogic func(ctx context.Context, dbClient Database) error - the callback to execute
*/
func (c *clientImpl) UseDatabaseInTransaction(
	ctx context.Context, coreLogic func(ctx context.Context, dbClient Database) error,
) error {
	return c.RunSQLInTransaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		dbClient, err := newDatabase(ctx, tx)
		if err != nil {
			return fmt.Errorf("failed to define `Database` instance: [%w]", err)
		}
		return coreLogic(ctx, dbClient)
	})
}

/*
UseDatabaseInLockedTransaction utilize a `Database` instance in a transaction which
holds the lease on one secret for its entire duration.

	@param ctx context.Context - execution context
	@param secretID string - the secret to lock
	@param coreLogic func(ctx context.Context, dbClient Database) error - the callback to execute
*/
func (c *clientImpl) UseDatabaseInLockedTransaction(
	ctx context.Context,
	secretID string,
	coreLogic func(ctx context.Context, dbClient Database) error,
) error {
	logTags := c.GetLogTagsForContext(ctx)

	leaseCtx, cancel := context.WithTimeout(ctx, c.lockTimeout)
	defer cancel()
	lease, err := c.leases.Acquire(leaseCtx, secretID)
	if err != nil {
		log.WithError(err).WithFields(logTags).WithField("secret", secretID).Warn(
			"Unable to acquire secret lease",
		)
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).WithFields(logTags).WithField("secret", secretID).Error(
				"Failed to release secret lease",
			)
		}
	}()

	return c.UseDatabaseInTransaction(ctx, coreLogic)
}

/*
ActiveSessionWrapper helper function for deciding whether to start a new transition
or use an existing one.

	@param ctx context.Context - execution context
	@param activeDBClient Database - existing database transaction
	@param persistence Client - persistence client
	@param coreLogic func(ctx context.Context, dbClient Database) error - the callback to execute
*/
func ActiveSessionWrapper(
	ctx context.Context,
	activeDBClient Database,
	persistence Client,
	coreLogic func(ctx context.Context, dbClient Database) error,
) error {
	if activeDBClient == nil {
		return persistence.UseDatabaseInTransaction(ctx, coreLogic)
	}
	return coreLogic(ctx, activeDBClient)
}
