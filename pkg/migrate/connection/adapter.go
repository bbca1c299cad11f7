package connection

import (
	"fmt"

	"github.com/baderkha/table-transfer/pkg/migrate/config/storecfg"
	"github.com/baderkha/table-transfer/pkg/migrate/store"
	"github.com/baderkha/table-transfer/pkg/migrate/store/dynamo"
	"github.com/baderkha/table-transfer/pkg/migrate/store/file"
	"github.com/baderkha/table-transfer/pkg/migrate/store/memory"
	"github.com/baderkha/table-transfer/pkg/migrate/store/sqlkv"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Opened : an adapter and how to release it
type Opened struct {
	Adapter store.Adapter
	Close   func() error
}

// OpenAdapter : builds the adapter described by cfg, wrapped with retries when policy asks for them
func OpenAdapter(cfg storecfg.Store, fs afero.Fs, maxConc int, batchSize int, policy store.RetryPolicy, logger zerolog.Logger) (*Opened, error) {
	var (
		a       store.Adapter
		closeFn = func() error { return nil }
	)
	logger = logger.With().Str("store", string(cfg.Type)).Logger()
	switch cfg.Type {
	case storecfg.TypeDynamoDB:
		client, err := DialDynamoDB(cfg.DynamoDB, logger)
		if err != nil {
			return nil, err
		}
		a = dynamo.New(client, dynamo.Options{
			PageLimit:      cfg.DynamoDB.PageLimit,
			ConsistentRead: cfg.DynamoDB.ConsistentRead,
		}, logger)
	case storecfg.TypeMYSQL:
		db, err := DialMysql(cfg.MYSQL.GetDSN(), maxConc, cfg.MYSQL.QueryLogging, logger)
		if err != nil {
			return nil, err
		}
		a = sqlkv.New(db, cfg.MYSQL.KeyAttributes, cfg.MYSQL.PageSize, batchSize)
		closeFn = db.Close
	case storecfg.TypeFile:
		a = file.New(fs, cfg.File.Root, cfg.File.PageSize, batchSize)
	case storecfg.TypeMemory:
		// dry run: destinations are created on demand and kept in process
		a = memory.New(cfg.Memory.KeyAttributes, memory.WithBatchSize(batchSize), memory.WithAutoCreate())
	default:
		return nil, fmt.Errorf("unsupported store type %q", cfg.Type)
	}
	return &Opened{Adapter: store.WithRetry(a, policy, logger), Close: closeFn}, nil
}
