package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	"farmacia/internal/core/id"
	"farmacia/internal/domain/pricing"
)

// AuditAction represents the type of audited operation.
type AuditAction string

const AuditActionBulkApply AuditAction = "bulk_apply"

const auditEntityBulkRun = "pricing_bulk_run"

// CompressionAlgo specifies how AuditEntry.Changes is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditEntry is one sys_audit row.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            AuditAction     `db:"action"`
	UserID            string          `db:"user_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	Metadata          json.RawMessage `db:"metadata"`
	CreatedAt         time.Time       `db:"created_at"`
}

var auditColumns = ExtractDBColumns[AuditEntry]()

// AuditService writes sys_audit rows. Large payloads are zstd-compressed.
// It also serves as the bulk run log of the pricing service.
type AuditService struct {
	db                QuerierProvider
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ pricing.BulkAuditor = (*AuditService)(nil)

// NewAuditService creates an audit service.
func NewAuditService(db QuerierProvider) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		db:                db,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 8 * 1024,
	}, nil
}

// Log records an audit entry.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.compress(&entry)

	sql, args, err := Builder().
		Insert("sys_audit").
		SetMap(StructToMap(entry)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}

	if _, err := s.db.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns the newest entries of entityType with payloads decompressed.
func (s *AuditService) List(ctx context.Context, entityType string, limit int) ([]AuditEntry, error) {
	sql, args, err := Builder().
		Select(auditColumns...).
		From("sys_audit").
		Where("entity_type = ?", entityType).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit query: %w", err)
	}

	var entries []AuditEntry
	if err := pgxscan.Select(ctx, s.db.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	for i := range entries {
		if err := s.decompress(&entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// LogBulkRun stores a bulk run with its full result as the payload.
func (s *AuditService) LogBulkRun(ctx context.Context, run *pricing.BulkRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal bulk run: %w", err)
	}
	meta, err := json.Marshal(map[string]any{
		"markup":    run.Markup.String(),
		"succeeded": len(run.Result.Succeeded),
		"failed":    len(run.Result.Failed),
	})
	if err != nil {
		return fmt.Errorf("marshal bulk run metadata: %w", err)
	}

	return s.Log(ctx, AuditEntry{
		EntityType: auditEntityBulkRun,
		EntityID:   run.ID,
		Action:     AuditActionBulkApply,
		UserID:     run.ChangedBy,
		Changes:    payload,
		Metadata:   meta,
		CreatedAt:  run.FinishedAt,
	})
}

// RecentBulkRuns returns the newest bulk runs.
func (s *AuditService) RecentBulkRuns(ctx context.Context, limit int) ([]*pricing.BulkRun, error) {
	entries, err := s.List(ctx, auditEntityBulkRun, limit)
	if err != nil {
		return nil, err
	}

	runs := make([]*pricing.BulkRun, 0, len(entries))
	for _, e := range entries {
		var run pricing.BulkRun
		if err := json.Unmarshal(e.Changes, &run); err != nil {
			return nil, fmt.Errorf("decode bulk run %s: %w", e.ID, err)
		}
		runs = append(runs, &run)
	}
	return runs, nil
}

func (s *AuditService) compress(entry *AuditEntry) {
	entry.CompressionAlgo = CompressionNone
	if len(entry.Changes) <= s.compressThreshold {
		return
	}
	entry.ChangesCompressed = s.encoder.EncodeAll(entry.Changes, nil)
	entry.Changes = nil
	entry.CompressionAlgo = CompressionZstd
}

func (s *AuditService) decompress(entry *AuditEntry) error {
	if entry.CompressionAlgo != CompressionZstd || len(entry.ChangesCompressed) == 0 {
		return nil
	}
	raw, err := s.decoder.DecodeAll(entry.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress audit entry %s: %w", entry.ID, err)
	}
	entry.Changes = raw
	entry.ChangesCompressed = nil
	return nil
}
