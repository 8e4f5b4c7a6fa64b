// Package jig implements the fixture operations: saving form input,
// checkout and return, deletion and management of the enumerated domains.
// Every successful mutation is recorded as a domain event.
package jig

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/matthewbaird/jigtrack/internal/event"
	"github.com/matthewbaird/jigtrack/internal/form"
	"github.com/matthewbaird/jigtrack/internal/logger"
	"github.com/matthewbaird/jigtrack/internal/schema"
)

// Rows is the fixture row store.
type Rows interface {
	form.RowStore
	Get(ctx context.Context, key int64) (schema.Record, error)
	Delete(ctx context.Context, key int64) (bool, error)
}

// Service runs fixture operations against the row store. It is not safe for
// concurrent use; callers serialize operations.
type Service struct {
	rows Rows
	rec  event.Recorder
	log  *zap.Logger
}

// NewService returns a Service. rec may be nil.
func NewService(rows Rows, rec event.Recorder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{rows: rows, rec: rec, log: log}
}

// Save submits a record produced by form.Validate and records the creation
// or edit.
func (s *Service) Save(ctx context.Context, user string, sch *schema.Schema, r schema.Record, mode form.Mode, view form.RowMapper) (int64, error) {
	op := "create"
	if mode.IsEdit() {
		op = "update"
	}
	log := logger.WithUser(s.log, user).With(zap.String("op", op))

	key, err := form.Submit(ctx, sch, r, mode, form.Target{Store: s.rows, View: view})
	if err != nil {
		log.Error("saving jig failed", zap.Error(err))
		return 0, err
	}
	log.Info("jig saved", zap.Int64("jig_id", key))

	p := event.JigWrittenPayload{JigID: key, Name: text(r["name"]), No: text(r["no"]), Values: storageValues(r)}
	if mode.IsEdit() {
		s.record(ctx, log, event.NewJigUpdated(user, p))
	} else {
		s.record(ctx, log, event.NewJigCreated(user, p))
	}
	return key, nil
}

// Checkout moves an unused fixture into use. Counters are unchanged.
func (s *Service) Checkout(ctx context.Context, user string, key int64) (schema.Record, error) {
	return s.transition(ctx, user, key, "checkout", schema.StatusInUse, false)
}

// Return moves a fixture in use back to unused and counts one use against
// both the lifetime and the calibration counters.
func (s *Service) Return(ctx context.Context, user string, key int64) (schema.Record, error) {
	return s.transition(ctx, user, key, "return", schema.StatusUnused, true)
}

func (s *Service) transition(ctx context.Context, user string, key int64, op, target string, count bool) (schema.Record, error) {
	log := logger.WithUser(s.log, user).With(zap.String("op", op), zap.Int64("jig_id", key))

	row, err := s.rows.Get(ctx, key)
	if err != nil {
		log.Error("loading jig failed", zap.Error(err))
		return nil, err
	}
	current := text(row["UseStatus"])
	if err := ValidateTransition(statusTransitions, current, target); err != nil {
		log.Info("jig operation rejected", zap.String("status", current), zap.Error(err))
		return nil, err
	}

	status := row["UseStatus"]
	if m, ok := status.(schema.EnumMember); ok {
		m.Value = target
		status = m
	} else {
		status = target
	}
	partial := schema.Record{"UseStatus": status}
	if count {
		partial["Usedcount"] = number(row["Usedcount"]) + 1
		partial["CheckUsedcount"] = number(row["CheckUsedcount"]) + 1
	}

	if err := s.apply(ctx, key, partial); err != nil {
		log.Error("jig operation failed", zap.Error(err))
		return nil, err
	}
	updated := row.Clone()
	for k, v := range partial {
		updated[k] = v
	}
	log.Info("jig status changed", zap.String("from", current), zap.String("to", target))

	p := event.JigStatusPayload{
		JigID:          key,
		Name:           text(row["name"]),
		From:           current,
		To:             target,
		Usedcount:      number(updated["Usedcount"]),
		CheckUsedcount: number(updated["CheckUsedcount"]),
	}
	if target == schema.StatusInUse {
		s.record(ctx, log, event.NewJigCheckedOut(user, p))
	} else {
		s.record(ctx, log, event.NewJigReturned(user, p))
	}
	return updated, nil
}

func (s *Service) apply(ctx context.Context, key int64, partial schema.Record) error {
	ok, err := s.rows.Update(ctx, key, partial)
	if err == nil && !ok {
		err = fmt.Errorf("%w: key %d", form.ErrRowGone, key)
	}
	if err == nil {
		err = s.rows.Commit()
	}
	if err != nil {
		if rerr := s.rows.Revert(); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return err
	}
	return nil
}

// Delete removes the fixture with key.
func (s *Service) Delete(ctx context.Context, user string, key int64) error {
	log := logger.WithUser(s.log, user).With(zap.String("op", "delete"), zap.Int64("jig_id", key))

	row, err := s.rows.Get(ctx, key)
	if err != nil {
		log.Error("loading jig failed", zap.Error(err))
		return err
	}
	ok, err := s.rows.Delete(ctx, key)
	if err == nil && !ok {
		err = fmt.Errorf("%w: key %d", form.ErrRowGone, key)
	}
	if err == nil {
		err = s.rows.Commit()
	}
	if err != nil {
		if rerr := s.rows.Revert(); rerr != nil {
			err = errors.Join(err, rerr)
		}
		log.Error("deleting jig failed", zap.Error(err))
		return err
	}
	log.Info("jig deleted")
	s.record(ctx, log, event.NewJigDeleted(user, event.JigDeletedPayload{JigID: key, Name: text(row["name"])}))
	return nil
}

// record is best-effort: a failed activity write never fails the operation.
func (s *Service) record(ctx context.Context, log *zap.Logger, evt event.DomainEvent) {
	if s.rec == nil {
		return
	}
	if err := s.rec.Record(ctx, evt); err != nil {
		log.Warn("event recording failed", zap.String("event_type", evt.EventType), zap.Error(err))
	}
}

func text(v any) string {
	if v == nil {
		return ""
	}
	return schema.Display(v)
}

func number(v any) int64 {
	n, _ := v.(int64)
	return n
}

func storageValues(r schema.Record) map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = schema.StorageValue(v)
	}
	return out
}
