package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types recorded in the local activity log.
const (
	TypeLogin           = "session.login"
	TypeLogout          = "session.logout"
	TypeExpired         = "session.expired"
	TypeTicketCreated   = "ticket.created"
	TypeTicketAssigned  = "ticket.assigned"
	TypeTicketCompleted = "ticket.completed"
	TypeTicketExported  = "ticket.exported"
	TypeDocumentIngest  = "document.processed"
	TypeSprintIngest    = "sprint_document.processed"
	TypeWorkloadOpt     = "system.optimized"
	TypePrioritiesAdj   = "system.priorities_adjusted"
	TypeSystemSaved     = "system.saved"
	TypeReportSaved     = "report.saved"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append records one event. A nil Writer DB makes Append a no-op so components
// can run without a workspace.
func (w Writer) Append(ctx context.Context, evtType, entityKind, entityID, actor string, payload EventPayload) error {
	if w.DB == nil {
		return nil
	}
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if actor == "" {
		actor = "anonymous"
	}
	_, err = w.DB.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, evtType, entityKind, nullable(entityID), actor, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
