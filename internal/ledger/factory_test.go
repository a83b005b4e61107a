package ledger

import (
	"context"
	"testing"

	"arclight-go/internal/config"
)

func TestNewLedgerFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.LedgerConfig
		wantType string
		wantErr  bool
	}{
		{
			name:     "memory",
			cfg:      config.LedgerConfig{Type: "memory"},
			wantType: "*ledger.MemoryLedger",
		},
		{
			name:     "filesystem",
			cfg:      config.LedgerConfig{Type: "filesystem", FSRoot: t.TempDir()},
			wantType: "*ledger.FileSystemLedger",
		},
		{
			name:    "filesystem without root",
			cfg:     config.LedgerConfig{Type: "filesystem"},
			wantErr: true,
		},
		{
			name:     "s3",
			cfg:      config.LedgerConfig{Type: "s3", S3Bucket: "records", S3Region: "us-east-1", S3AccessKeyID: "id", S3SecretAccessKey: "secret"},
			wantType: "*ledger.S3Ledger",
		},
		{
			name:    "s3 without bucket",
			cfg:     config.LedgerConfig{Type: "s3"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			cfg:     config.LedgerConfig{Type: "tape"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLedgerFromConfig(context.Background(), tt.cfg, &seqAnchors{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLedgerFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := typeName(l); got != tt.wantType {
				t.Errorf("NewLedgerFromConfig() type = %s, want %s", got, tt.wantType)
			}
		})
	}
}
