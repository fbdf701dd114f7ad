/*
service.go - Payment assignment and unassignment

PURPOSE:
  Attaches a solicitor to a payment (computing the bonus) and detaches it
  again. Each operation is one unit of work: every read used for the
  decision and every write happen inside a single Store.WithTx, so a
  payment never ends up with bonus fields but no calculation row, or the
  other way round.

STATE MACHINE:
  Unassigned --Assign--> Assigned(rule | none) --Unassign--> Unassigned
  Assign on an already assigned payment replaces the previous solicitor
  and calculation, unless that calculation is already paid (ConflictError).

ACCESS:
  Admins are scoped to their location:
  - solicitor of another location   -> AccessError (403)
  - payment of another location     -> NotFoundError (404), the payment's
                                       existence is not revealed
  Super admins are unrestricted.

SEE ALSO:
  - matcher.go, calculator.go: Rule selection and arithmetic
  - api/payments.go: HTTP endpoints
*/
package bonus

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/donor-crm/crm"
)

// Store is the persistence the assigner needs.
type Store interface {
	WithTx(ctx context.Context, fn func(crm.Tx) error) error
}

// Observer receives assignment outcomes, e.g. for metrics.
type Observer interface {
	AssignmentRecorded(outcome string, bonus decimal.Decimal)
}

// Outcomes reported to the Observer.
const (
	OutcomeBonus    = "bonus"
	OutcomeNoBonus  = "no_bonus"
	OutcomeUnassign = "unassigned"
	OutcomeFailed   = "failed"
)

// AssignResult is returned by Assign.
type AssignResult struct {
	Payment     crm.Payment
	Result      Result
	Calculation *crm.BonusCalculation // nil when no bonus
}

// BonusCalculated mirrors the API's bonusCalculated flag.
func (r AssignResult) BonusCalculated() bool { return r.Calculation != nil }

// Assigner runs assignments against a Store.
type Assigner struct {
	store    Store
	logger   logrus.FieldLogger
	observer Observer
	now      func() time.Time
}

// Option configures an Assigner.
type Option func(*Assigner)

func WithLogger(l logrus.FieldLogger) Option { return func(a *Assigner) { a.logger = l } }
func WithObserver(o Observer) Option         { return func(a *Assigner) { a.observer = o } }
func WithClock(now func() time.Time) Option  { return func(a *Assigner) { a.now = now } }

// NewAssigner creates an assigner.
func NewAssigner(store Store, opts ...Option) *Assigner {
	a := &Assigner{
		store:  store,
		logger: logrus.StandardLogger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// =============================================================================
// ASSIGN
// =============================================================================

// Assign attaches solicitorID to paymentID and records the bonus.
func (a *Assigner) Assign(ctx context.Context, id crm.Identity, paymentID, solicitorID int64) (*AssignResult, error) {
	scope, err := id.Scope()
	if err != nil {
		return nil, err
	}
	if solicitorID <= 0 {
		return nil, crm.Invalid("solicitorId", "is required")
	}

	var out AssignResult
	err = a.store.WithTx(ctx, func(tx crm.Tx) error {
		sol, err := tx.GetSolicitor(ctx, solicitorID)
		if err != nil {
			return err
		}
		if sol == nil {
			return crm.NotFound("solicitor", solicitorID)
		}
		if err := scope.Authorize("solicitor", sol.ID, sol.LocationID); err != nil {
			return err
		}

		pc, err := tx.GetPaymentContext(ctx, paymentID)
		if err != nil {
			return err
		}
		if pc == nil || !scope.Allows(pc.LocationID) {
			return crm.NotFound("payment", paymentID)
		}

		// A paid-out bonus is settled; replacing it would pay twice.
		prev, err := tx.GetCalculationForPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if prev != nil && prev.IsPaid {
			return crm.Conflict("bonus for payment %d was already paid out", paymentID)
		}

		candidates, err := tx.CandidateRules(ctx, solicitorID, pc.Payment.Date)
		if err != nil {
			return err
		}
		rule := Match(candidates, FactsFor(*pc, solicitorID))
		res := Calculate(rule, pc.Payment.Amount)
		now := a.now()

		payment, err := tx.SetPaymentBonus(ctx, paymentID, res.PaymentBonus(solicitorID, now))
		if err != nil {
			return err
		}
		if payment == nil {
			return crm.NotFound("payment", paymentID)
		}

		// Re-assignment replaces whatever was computed before.
		if _, err := tx.DeleteCalculationsForPayment(ctx, paymentID); err != nil {
			return err
		}

		out = AssignResult{Payment: *payment, Result: res}
		if res.Calculated() {
			calc, err := tx.InsertCalculation(ctx, res.Calculation(paymentID, solicitorID, pc.Payment.Amount, now))
			if err != nil {
				return err
			}
			out.Calculation = calc
		}
		return nil
	})
	if err != nil {
		a.failed(err, logrus.Fields{"payment_id": paymentID, "solicitor_id": solicitorID, "user_id": id.UserID})
		return nil, err
	}

	fields := logrus.Fields{
		"payment_id":   paymentID,
		"solicitor_id": solicitorID,
		"user_id":      id.UserID,
		"bonus_amount": out.Result.Amount.StringFixed(2),
	}
	if out.Result.Rule != nil {
		fields["bonus_rule_id"] = out.Result.Rule.ID
	}
	a.logger.WithFields(fields).Info("Solicitor assigned to payment")

	if a.observer != nil {
		outcome := OutcomeNoBonus
		if out.BonusCalculated() {
			outcome = OutcomeBonus
		}
		a.observer.AssignmentRecorded(outcome, out.Result.Amount)
	}
	return &out, nil
}

// =============================================================================
// UNASSIGN
// =============================================================================

// Unassign detaches the solicitor from paymentID and drops its calculation.
// Unassigning an unassigned payment succeeds and changes nothing.
func (a *Assigner) Unassign(ctx context.Context, id crm.Identity, paymentID int64) (*crm.Payment, error) {
	scope, err := id.Scope()
	if err != nil {
		return nil, err
	}

	var out *crm.Payment
	err = a.store.WithTx(ctx, func(tx crm.Tx) error {
		pc, err := tx.GetPaymentContext(ctx, paymentID)
		if err != nil {
			return err
		}
		if pc == nil || !scope.Allows(pc.LocationID) {
			return crm.NotFound("payment", paymentID)
		}

		if _, err := tx.DeleteCalculationsForPayment(ctx, paymentID); err != nil {
			return err
		}

		payment, err := tx.SetPaymentBonus(ctx, paymentID, crm.PaymentBonus{UpdatedAt: a.now()})
		if err != nil {
			return err
		}
		if payment == nil {
			return crm.NotFound("payment", paymentID)
		}
		out = payment
		return nil
	})
	if err != nil {
		a.failed(err, logrus.Fields{"payment_id": paymentID, "user_id": id.UserID})
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{"payment_id": paymentID, "user_id": id.UserID}).Info("Solicitor unassigned from payment")
	if a.observer != nil {
		a.observer.AssignmentRecorded(OutcomeUnassign, decimal.Zero)
	}
	return out, nil
}

// =============================================================================
// PAYOUT
// =============================================================================

// MarkPaid flags a calculation as paid out to the solicitor.
func (a *Assigner) MarkPaid(ctx context.Context, id crm.Identity, calculationID int64) (*crm.BonusCalculation, error) {
	scope, err := id.Scope()
	if err != nil {
		return nil, err
	}

	var out *crm.BonusCalculation
	err = a.store.WithTx(ctx, func(tx crm.Tx) error {
		calc, err := tx.GetCalculation(ctx, calculationID)
		if err != nil {
			return err
		}
		if calc == nil {
			return crm.NotFound("bonus calculation", calculationID)
		}
		sol, err := tx.GetSolicitor(ctx, calc.SolicitorID)
		if err != nil {
			return err
		}
		if sol == nil || !scope.Allows(sol.LocationID) {
			return crm.NotFound("bonus calculation", calculationID)
		}
		if calc.IsPaid {
			return crm.Conflict("bonus calculation already paid")
		}

		out, err = tx.MarkCalculationPaid(ctx, calculationID, a.now())
		if err != nil {
			return err
		}
		if out == nil {
			return crm.NotFound("bonus calculation", calculationID)
		}
		return nil
	})
	if err != nil {
		a.failed(err, logrus.Fields{"bonus_calculation_id": calculationID, "user_id": id.UserID})
		return nil, err
	}
	return out, nil
}

func (a *Assigner) failed(err error, fields logrus.Fields) {
	entry := a.logger.WithFields(fields).WithError(err)
	if crm.IsClientError(err) {
		entry.Debug("Bonus operation rejected")
	} else {
		entry.Error("Bonus operation failed")
		if a.observer != nil {
			a.observer.AssignmentRecorded(OutcomeFailed, decimal.Zero)
		}
	}
}
