package core

// service_mutations.go implements the audited edit workflow.
//
// Every save runs in one storage transaction that updates the risk item and
// appends one AuditEntry per changed field. Either both persist or neither
// does. The capture timestamp is taken when Save is called, before the
// transaction begins, and is shared by all entries of the save.

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/JonMunkholm/RiskTracker/internal/logging"
)

// SaveRequest carries field edits for one risk item.
type SaveRequest struct {
	RiskID  int64
	Changes map[Field]string
	Actor   string

	// ExpectedVersion, when positive, must equal the stored version or the
	// save fails with a ConflictError.
	ExpectedVersion int
}

// SaveResult is the outcome of a successful save.
type SaveResult struct {
	Risk    *RiskAssessment `json:"risk"`
	Entries []AuditEntry    `json:"entries"`
	Changed bool            `json:"changed"`
}

// Save applies req and records the audit trail. Saving values identical to the
// stored ones succeeds without writing anything.
func (s *Service) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	capturedAt := s.now()
	actor := resolveActor(ctx, req.Actor)
	logger := logging.WithFields(ctx, "risk_id", req.RiskID, "actor", actor)

	changes, err := normalizeChanges(req.Changes)
	if err != nil {
		s.recorder.SaveFinished(SaveInvalid, 0)
		return nil, err
	}

	var result *SaveResult
	err = s.store.InTx(ctx, func(tx Tx) error {
		risk, err := tx.GetRisk(ctx, req.RiskID)
		if err != nil {
			return err
		}
		if req.ExpectedVersion > 0 && risk.Version != req.ExpectedVersion {
			return &ConflictError{RiskID: risk.ID, Expected: req.ExpectedVersion, Actual: risk.Version}
		}

		batchID := uuid.NewString()
		var entries []AuditEntry
		for _, f := range EditableFields {
			newValue, ok := changes[f]
			if !ok {
				continue
			}
			oldValue := risk.Get(f)
			if oldValue == newValue {
				continue
			}
			risk.set(f, newValue)
			entries = append(entries, AuditEntry{
				RiskID:    risk.ID,
				Field:     f,
				OldValue:  oldValue,
				NewValue:  newValue,
				Actor:     actor,
				BatchID:   batchID,
				ChangedAt: capturedAt,
			})
		}

		if len(entries) == 0 {
			result = &SaveResult{Risk: risk, Entries: []AuditEntry{}}
			return nil
		}

		if statusChanged(entries) && risk.ReviewStatus.IsSignedOff() {
			at := capturedAt
			risk.ReviewedBy = actor
			risk.ReviewedAt = &at
		}

		prevVersion := risk.Version
		risk.Version = prevVersion + 1
		risk.UpdatedAt = capturedAt

		if err := tx.UpdateRisk(ctx, risk, prevVersion); err != nil {
			return err
		}
		for i := range entries {
			if err := tx.InsertAuditEntry(ctx, &entries[i]); err != nil {
				return fmt.Errorf("append audit entry %s: %w", entries[i].Field, err)
			}
		}

		result = &SaveResult{Risk: risk, Entries: entries, Changed: true}
		return nil
	})

	if err != nil {
		outcome := saveOutcome(err)
		s.recorder.SaveFinished(outcome, 0)
		if outcome == SaveFailed {
			logger.Error("save failed", "error", err)
		} else {
			logger.Info("save rejected", "outcome", outcome, "error", err)
		}
		return nil, WrapStorage("save risk", err)
	}

	if result.Changed {
		s.recorder.SaveFinished(SaveChanged, len(result.Entries))
		logger.Info("risk saved", "fields_changed", len(result.Entries), "version", result.Risk.Version)
	} else {
		s.recorder.SaveFinished(SaveUnchanged, 0)
		logger.Debug("save without changes")
	}
	return result, nil
}

// normalizeChanges rejects non-editable fields and canonicalizes values.
func normalizeChanges(in map[Field]string) (map[Field]string, error) {
	out := make(map[Field]string, len(in))
	for f, v := range in {
		if !f.IsEditable() {
			return nil, &ValidationError{Field: string(f), Value: v, Message: "field is not editable"}
		}
		nv, err := normalizeValue(f, v)
		if err != nil {
			return nil, err
		}
		out[f] = nv
	}
	return out, nil
}

func statusChanged(entries []AuditEntry) bool {
	for _, e := range entries {
		if e.Field == FieldReviewStatus {
			return true
		}
	}
	return false
}

func saveOutcome(err error) SaveOutcome {
	var (
		nf *NotFoundError
		ce *ConflictError
		ve *ValidationError
	)
	switch {
	case errors.As(err, &nf):
		return SaveNotFound
	case errors.As(err, &ce):
		return SaveConflict
	case errors.As(err, &ve):
		return SaveInvalid
	default:
		return SaveFailed
	}
}

// ParseChanges converts loosely typed input, such as decoded JSON or form
// values, into a change set.
func ParseChanges(in map[string]string) map[Field]string {
	out := make(map[Field]string, len(in))
	for k, v := range in {
		out[Field(k)] = v
	}
	return out
}
