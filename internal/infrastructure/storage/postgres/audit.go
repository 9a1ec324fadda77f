package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/stock"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// auditRow is the persisted shape of one audit entry.
type auditRow struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            string          `db:"action"`
	Actor             string          `db:"actor"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditService persists the audit trail of stock operations in the tenant's
// own namespace. Large snapshots are zstd-compressed before storage.
//
// Implements stock.AuditRecorder; writes join the caller's transaction, so
// an audit entry never survives a rolled-back operation.
type AuditService struct {
	compressThreshold int // bytes, default 10KB
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
}

var _ stock.AuditLog = (*AuditService)(nil)

// NewAuditService creates a new audit service.
func NewAuditService() (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		compressThreshold: 10 * 1024, // 10KB
		encoder:           encoder,
		decoder:           decoder,
	}, nil
}

// Record writes one audit entry inside the current transaction.
func (s *AuditService) Record(ctx context.Context, entry stock.AuditEntry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return fmt.Errorf("marshal audit changes: %w", err)
	}

	row := auditRow{
		ID:              id.New(),
		EntityType:      entry.EntityType,
		EntityID:        entry.EntityID,
		Action:          entry.Action,
		Actor:           entry.Actor,
		Changes:         changes,
		CompressionAlgo: CompressionNone,
		CreatedAt:       time.Now().UTC(),
	}
	if row.Actor == "" {
		row.Actor = appctx.GetActorID(ctx)
	}

	// Compress large snapshots
	if len(row.Changes) > s.compressThreshold {
		row.ChangesCompressed = s.encoder.EncodeAll(row.Changes, nil)
		row.Changes = nil
		row.CompressionAlgo = CompressionZstd
	}

	sql := `
		INSERT INTO audit_log (
			id, entity_type, entity_id, action, actor,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	querier := MustGetTxManager(ctx).GetQuerier(ctx)
	_, err = querier.Exec(ctx, sql,
		row.ID, row.EntityType, row.EntityID, row.Action, row.Actor,
		row.Changes, row.ChangesCompressed, row.CompressionAlgo, row.CreatedAt,
	)
	return err
}

// EntityHistory retrieves audit history for an entity, newest first.
// Compressed snapshots are transparently decompressed before they leave
// the storage layer.
func (s *AuditService) EntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]stock.AuditRecord, error) {
	sql := `
		SELECT id, entity_type, entity_id, action, actor,
			   changes, changes_compressed, compression_algo, created_at
		FROM audit_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := MustGetTxManager(ctx).GetQuerier(ctx).Query(ctx, sql, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []stock.AuditRecord
	for rows.Next() {
		var row auditRow
		err := rows.Scan(
			&row.ID, &row.EntityType, &row.EntityID, &row.Action, &row.Actor,
			&row.Changes, &row.ChangesCompressed, &row.CompressionAlgo, &row.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		if row.CompressionAlgo == CompressionZstd && len(row.ChangesCompressed) > 0 {
			decompressed, err := s.decoder.DecodeAll(row.ChangesCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress changes: %w", err)
			}
			row.Changes = decompressed
		}

		records = append(records, stock.AuditRecord{
			ID:         row.ID,
			EntityType: row.EntityType,
			EntityID:   row.EntityID,
			Action:     row.Action,
			Actor:      row.Actor,
			Changes:    row.Changes,
			CreatedAt:  row.CreatedAt,
		})
	}

	return records, rows.Err()
}
