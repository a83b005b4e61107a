package ledger

import (
	"context"
	"fmt"

	"arclight-go/internal/arclight"
	"arclight-go/internal/config"
)

// NewLedgerFromConfig creates a Ledger implementation based on the ledger config type.
func NewLedgerFromConfig(ctx context.Context, cfg config.LedgerConfig, anchors arclight.IDGenerator) (arclight.Ledger, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryLedger(anchors, int(cfg.ChunkSize)), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem ledger requires fs_root to be set")
		}
		return NewFileSystemLedger(cfg.FSRoot, anchors, int(cfg.ChunkSize))
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 ledger requires s3_bucket to be set")
		}
		return NewS3LedgerFromConfig(ctx, cfg, anchors)
	default:
		return nil, fmt.Errorf("unknown ledger type: %s", cfg.Type)
	}
}
