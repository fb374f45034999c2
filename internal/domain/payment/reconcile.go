package payment

import "github.com/google/uuid"

// Processor statuses with a dedicated branch. Every other status reported by
// the processor (pending, in_process, rejected, ...) maps to processing.
const (
	ExternalApproved  = "approved"
	ExternalCancelled = "cancelled"
)

// Outcome is what a reconciliation reports back to its caller.
type Outcome string

const (
	OutcomePaid       Outcome = "paid"
	OutcomeCancelled  Outcome = "cancelled"
	OutcomeProcessing Outcome = "processing"
	OutcomeUnknown    Outcome = "unknown"
)

// OutcomeFor maps a record status to the outcome shown to the payer.
func OutcomeFor(s Status) Outcome {
	switch s {
	case StatusPaid:
		return OutcomePaid
	case StatusCancelled:
		return OutcomeCancelled
	case StatusProcessing, StatusCreated, StatusOpen:
		return OutcomeProcessing
	default:
		return OutcomeUnknown
	}
}

// EffectKind names a side effect the caller must run after persisting a decision.
type EffectKind string

const (
	EffectGrantCredits       EffectKind = "grant_credits"
	EffectCreditsUpdated     EffectKind = "credits_updated"
	EffectPaymentUpdated     EffectKind = "payment_updated"
	EffectNotifyConfirmation EffectKind = "notify_confirmation"
)

// Effect is addressed to an explicit user, always the record owner.
type Effect struct {
	Kind    EffectKind
	UserID  uuid.UUID
	Credits int64
}

// Policy tunes the branches where the processor and the local record disagree.
type Policy struct {
	// ApproveCancelled lets an approved notification revive a cancelled record.
	ApproveCancelled bool
	// KeepTerminal stops non-final processor statuses from moving a paid or
	// cancelled record back to processing.
	KeepTerminal bool
}

// Decision is the pure result of comparing a processor status with a record.
type Decision struct {
	Previous Status
	Next     Status
	Effects  []Effect
	// Conflict is set when the processor reports approval for a record that
	// was already cancelled and the policy keeps it cancelled.
	Conflict bool
}

// Changed reports whether the decision moves the record to a new status.
func (d Decision) Changed() bool {
	return d.Previous != d.Next
}

// Outcome reports the payer-facing result of the decision.
func (d Decision) Outcome() Outcome {
	return OutcomeFor(d.Next)
}

// Has reports whether the decision carries an effect of the given kind.
func (d Decision) Has(kind EffectKind) bool {
	for _, e := range d.Effects {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// Decide maps a processor status onto the current record. It performs no I/O;
// the returned effects are executed by the caller together with the status write.
func Decide(externalStatus string, current *Payment, policy Policy) Decision {
	d := Decision{Previous: current.Status, Next: current.Status}
	owner := current.OwnerUserID

	switch externalStatus {
	case ExternalApproved:
		switch {
		case current.Status == StatusPaid:
			// already applied
		case current.Status == StatusCancelled && !policy.ApproveCancelled:
			d.Conflict = true
		default:
			d.Next = StatusPaid
			if !current.CreditsGranted() {
				d.Effects = append(d.Effects, Effect{Kind: EffectGrantCredits, UserID: owner, Credits: current.Amount})
				d.Effects = append(d.Effects, Effect{Kind: EffectCreditsUpdated, UserID: owner})
			}
			d.Effects = append(d.Effects,
				Effect{Kind: EffectPaymentUpdated, UserID: owner},
				Effect{Kind: EffectNotifyConfirmation, UserID: owner, Credits: current.Amount},
			)
		}

	case ExternalCancelled:
		d.Next = StatusCancelled

	default:
		if policy.KeepTerminal && current.IsTerminal() {
			break
		}
		d.Next = StatusProcessing
	}

	// redeliveries of the same status only re-persist the processor id
	if d.Changed() && !d.Has(EffectPaymentUpdated) {
		d.Effects = append(d.Effects, Effect{Kind: EffectPaymentUpdated, UserID: owner})
	}

	return d
}

// Apply moves p to the decided status. The processor id is recorded on every
// call, including decisions that leave the status unchanged.
func (d Decision) Apply(p *Payment, externalID string) error {
	p.SetExternalID(externalID)
	if !d.Changed() {
		return nil
	}
	return p.TransitionTo(d.Next)
}
