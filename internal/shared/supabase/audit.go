package supabase

import (
	"context"
	"fmt"

	"github.com/Lipkin10/Racha-IA-demo/internal/shared/models"
	"github.com/supabase-community/supabase-go"
)

// LogsTable receives the request audit rows
const LogsTable = "ai_request_logs"

// AuditSink writes request logs through the Supabase REST API
type AuditSink struct {
	client *supabase.Client
}

// NewAuditSink creates a sink for the project at url
func NewAuditSink(url, apiKey string) (*AuditSink, error) {
	if url == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	client, err := supabase.NewClient(url, apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &AuditSink{client: client}, nil
}

// LogRequest inserts one row. The REST client carries no context, so ctx
// is accepted only to satisfy the sink interface.
func (s *AuditSink) LogRequest(_ context.Context, log *models.GatewayLog) error {
	_, _, err := s.client.From(LogsTable).
		Insert(log, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert request log: %w", err)
	}
	return nil
}
