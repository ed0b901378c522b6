package db

import (
	"context"
	"database/sql"
	"fmt"

	"policy-rag/internal/config"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// ChunkRecord is one embedded chunk of a corpus. Every build writes its rows
// under a new Generation; older generations stay until pruned.
type ChunkRecord struct {
	bun.BaseModel `bun:"table:policy_chunks,alias:c"`
	Corpus        string          `bun:"corpus,pk"`
	Generation    string          `bun:"generation,pk"`
	ChunkID       string          `bun:"chunk_id,pk"`
	Content       string          `bun:"content,notnull"`
	Source        string          `bun:"source,notnull"`
	PageNumber    int             `bun:"page_number,notnull"`
	ChunkIndex    int             `bun:"chunk_index,notnull"`
	StartOffset   int             `bun:"start_offset,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	Similarity    float32         `bun:"similarity,scanonly"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens a connection pool with the configured driver. The pool
// dials lazily.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "pq":
		sqldb, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return sqldb, nil
	case "pgdriver", "":
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN))), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// InitDB enables pgvector and creates the chunk table.
func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*ChunkRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// InsertGeneration writes one build's records in a single transaction.
func InsertGeneration(ctx context.Context, db *bun.DB, records []ChunkRecord) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for start := 0; start < len(records); start += insertBatch {
			batch := records[start:min(start+insertBatch, len(records))]
			if _, err := tx.NewInsert().Model(&batch).Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert chunks: %w", err)
			}
		}
		return nil
	})
}

// PruneGenerations deletes, for each corpus, every generation except the one
// mapped to it in keep. A corpus missing from keep loses all its rows.
func PruneGenerations(ctx context.Context, db *bun.DB, corpora []string, keep map[string]string) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, corpus := range corpora {
			if _, err := pruneQuery(tx, corpus, keep[corpus]).Exec(ctx); err != nil {
				return fmt.Errorf("failed to prune corpus %s: %w", corpus, err)
			}
		}
		return nil
	})
}

const insertBatch = 500

// SearchChunks returns the limit rows of one corpus generation closest to vec by cosine distance.
func SearchChunks(ctx context.Context, db bun.IDB, corpus, generation string, vec []float32, limit int) ([]ChunkRecord, error) {
	var records []ChunkRecord
	if err := searchQuery(db, &records, corpus, generation, vec, limit).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	return records, nil
}

func searchQuery(db bun.IDB, dest *[]ChunkRecord, corpus, generation string, vec []float32, limit int) *bun.SelectQuery {
	v := pgvector.NewVector(vec)
	return db.NewSelect().
		Model(dest).
		Column("corpus", "chunk_id", "content", "source", "page_number", "chunk_index", "start_offset").
		ColumnExpr("1 - (embedding <=> ?) AS similarity", v).
		Where("corpus = ?", corpus).
		Where("generation = ?", generation).
		OrderExpr("embedding <=> ?", v).
		OrderExpr("chunk_id ASC").
		Limit(limit)
}

func pruneQuery(db bun.IDB, corpus, keep string) *bun.DeleteQuery {
	q := db.NewDelete().Model((*ChunkRecord)(nil)).Where("corpus = ?", corpus)
	if keep != "" {
		q = q.Where("generation <> ?", keep)
	}
	return q
}

// DropChunks removes the chunk table. InitDB recreates it.
func DropChunks(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*ChunkRecord)(nil)).IfExists().Exec(ctx)
	return err
}
