package services

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/review-takedown-backend/internal/domain"
)

// Resolution text limits, counted in characters after NFC normalization so
// composed and decomposed input measure the same.
const (
	MinReasonLen     = 50
	MaxReasonLen     = 2000
	MaxAdminNotesLen = 5000

	maxReasonCodeLen = 50
)

func textLen(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}

// validateResolve checks cmd without touching storage and normalizes it in
// place: text is NFC-normalized and trimmed, blank optional fields become nil.
func validateResolve(cmd *ResolveCommand) error {
	if strings.TrimSpace(cmd.RequestID) == "" {
		return invalid("id", "is required")
	}
	if strings.TrimSpace(cmd.ActorID) == "" {
		return invalid("actor", "is required")
	}

	switch cmd.Decision {
	case domain.DecisionAccept, domain.DecisionReject:
	default:
		return invalid("decision", "must be one of: accept, reject")
	}

	if cmd.Action != nil && strings.TrimSpace(*cmd.Action) == "" {
		cmd.Action = nil
	}
	if cmd.Decision == domain.DecisionAccept {
		if cmd.Action == nil {
			return invalid("action", "is required when decision is accept")
		}
		if *cmd.Action != domain.ActionHide && *cmd.Action != domain.ActionRemove {
			return invalid("action", "must be one of: hide, remove")
		}
	} else if cmd.Action != nil {
		return invalid("action", "must be omitted when decision is reject")
	}

	cmd.Reason = norm.NFC.String(strings.TrimSpace(cmd.Reason))
	if n := textLen(cmd.Reason); n < MinReasonLen || n > MaxReasonLen {
		return invalid("reason", "must be between %d and %d characters, got %d", MinReasonLen, MaxReasonLen, n)
	}

	if cmd.AdminNotes != nil {
		notes := norm.NFC.String(strings.TrimSpace(*cmd.AdminNotes))
		if notes == "" {
			cmd.AdminNotes = nil
		} else if n := textLen(notes); n > MaxAdminNotesLen {
			return invalid("admin_notes", "must be at most %d characters, got %d", MaxAdminNotesLen, n)
		} else {
			cmd.AdminNotes = &notes
		}
	}
	return nil
}

// validateSubmit checks and normalizes a submission.
func validateSubmit(cmd *SubmitCommand) error {
	if strings.TrimSpace(cmd.VendorID) == "" {
		return invalid("vendor", "is required")
	}
	if strings.TrimSpace(cmd.ReviewID) == "" {
		return invalid("review_id", "is required")
	}
	cmd.ReasonCode = strings.TrimSpace(cmd.ReasonCode)
	if cmd.ReasonCode == "" || len(cmd.ReasonCode) > maxReasonCodeLen {
		return invalid("reason_code", "is required and must be at most %d characters", maxReasonCodeLen)
	}
	cmd.ReasonDescription = norm.NFC.String(strings.TrimSpace(cmd.ReasonDescription))
	if cmd.ReasonDescription == "" {
		return invalid("reason_description", "is required")
	}
	if textLen(cmd.ReasonDescription) > MaxReasonLen {
		return invalid("reason_description", "must be at most %d characters", MaxReasonLen)
	}
	if cmd.VendorNotes != nil {
		notes := strings.TrimSpace(*cmd.VendorNotes)
		if notes == "" {
			cmd.VendorNotes = nil
		} else if textLen(notes) > MaxAdminNotesLen {
			return invalid("vendor_notes", "must be at most %d characters", MaxAdminNotesLen)
		} else {
			cmd.VendorNotes = &notes
		}
	}
	switch cmd.Priority {
	case "":
		cmd.Priority = domain.PriorityMedium
	case domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow:
	default:
		return invalid("priority", "must be one of: high, medium, low")
	}
	for i, ev := range cmd.Evidence {
		if strings.TrimSpace(ev.Type) == "" {
			return invalid("evidence", "item %d is missing a type", i)
		}
	}
	return nil
}
