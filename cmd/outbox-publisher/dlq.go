package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	"github.com/angelmondragon/tableserve-backend/pkg/outbox"
)

type dlqOptions struct {
	list   bool
	reason string
	limit  int
	replay string
}

func (o dlqOptions) active() bool {
	return o.list || o.replay != ""
}

type dlqAdmin interface {
	List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)
	ReplayTx(tx *gorm.DB, eventID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// runDLQCommand lists parked events or replays the given ids in one transaction.
func runDLQCommand(ctx context.Context, tx txRunner, dlq dlqAdmin, opts dlqOptions, out io.Writer) error {
	if opts.replay != "" {
		ids, err := parseEventIDs(opts.replay)
		if err != nil {
			return err
		}
		if err := tx.WithTx(ctx, func(tx *gorm.DB) error {
			for _, id := range ids {
				if err := dlq.ReplayTx(tx, id); err != nil {
					return fmt.Errorf("replay %s: %w", id, err)
				}
			}
			return nil
		}); err != nil {
			return err
		}
		fmt.Fprintf(out, "requeued %d event(s)\n", len(ids))
		return nil
	}

	reason := enums.OutboxDLQErrorReason(opts.reason)
	if reason != "" && !reason.IsValid() {
		return fmt.Errorf("unknown dlq reason %q", opts.reason)
	}
	rows, err := dlq.List(ctx, outbox.DLQFilter{Reason: reason, Limit: opts.limit})
	if err != nil {
		return err
	}
	for _, row := range rows {
		msg := ""
		if row.ErrorMessage != nil {
			msg = *row.ErrorMessage
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%d\t%s\n",
			row.EventID, row.EventType, row.ErrorReason, row.FailedAt.UTC().Format("2006-01-02T15:04:05Z"), row.AttemptCount, msg)
	}
	return nil
}

func parseEventIDs(raw string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, fmt.Errorf("invalid event id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no event ids given")
	}
	return ids, nil
}
