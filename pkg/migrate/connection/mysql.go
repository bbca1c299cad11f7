package connection

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/rs/zerolog"
	sqldblogger "github.com/simukti/sqldb-logger"
	"github.com/simukti/sqldb-logger/logadapter/zerologadapter"
)

// NewLogger : console logger on stderr, the format every component logs with
func NewLogger(level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func AddLogger(db *sql.DB, dsn string, driverName string, logger zerolog.Logger) *sql.DB {
	loggerAdapter := zerologadapter.New(logger.With().Str("driver", driverName).Logger())
	db = sqldblogger.OpenDriver(dsn, db.Driver(), loggerAdapter,
		sqldblogger.WithWrapResult(false),
		sqldblogger.WithDurationFieldname("dur_ms"),
		sqldblogger.WithDurationUnit(sqldblogger.DurationMillisecond),
		sqldblogger.WithSQLQueryAsMessage(true),        // default: false
		sqldblogger.WithSQLQueryFieldname("sql_query"), // default: query
	) // default: LevelInfo)
	return db
}

// DialMysql : opens and pings a pool sized for maxConc concurrent table pairs
func DialMysql(dsn string, maxConc int, qlog bool, logger zerolog.Logger) (*sql.DB, error) {
	logger.Debug().Msg("getting DialMysql con")
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("MYSQL : Could not dial connection to mysql due to : %w", err)
	}
	if qlog {
		sqlDB = AddLogger(sqlDB, dsn, "mysql", logger)
	}
	sqlDB.SetMaxOpenConns(maxConc)
	sqlDB.SetMaxIdleConns(maxConc)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("MYSQL : Could not ping mysql due to : %w", err)
	}
	logger.Debug().Msg("got DialMysql con")
	return sqlDB, nil
}
