package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"cloneexec/internal/ordermsg"
	"cloneexec/internal/store/model"
	"cloneexec/internal/store/sqlite"

	"gorm.io/datatypes"
)

// DBSink writes messages into the audit_message table.
type DBSink struct {
	store   *sqlite.Store
	cloneID string
}

func NewDBSink(store *sqlite.Store, cloneID string) *DBSink {
	return &DBSink{store: store, cloneID: cloneID}
}

func (s *DBSink) Append(ctx context.Context, msg ordermsg.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode audit payload: %w", err)
	}
	row := &model.AuditMessageModel{
		CloneID:     s.cloneID,
		MessageID:   msg.ID,
		FromEntity:  string(msg.From),
		ToEntity:    string(msg.To),
		Kind:        string(msg.Kind),
		Direction:   string(msg.Order.Direction),
		Status:      string(msg.Order.Status),
		ExitOutcome: string(msg.Order.ExitOutcome),
		Rate:        msg.Order.Rate,
		Size:        msg.Order.Size,
		Payload:     datatypes.JSON(payload),
		Timestamp:   msg.DateTime,
	}
	return s.store.InsertAudit(ctx, row)
}

func (s *DBSink) Recent(ctx context.Context, limit int) ([]ordermsg.Message, error) {
	rows, err := s.store.ListAudit(ctx, s.cloneID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ordermsg.Message, 0, len(rows))
	for _, r := range rows {
		var msg ordermsg.Message
		if err := json.Unmarshal(r.Payload, &msg); err != nil {
			return nil, fmt.Errorf("decode audit row %d: %w", r.ID, err)
		}
		out = append(out, msg)
	}
	return out, nil
}
