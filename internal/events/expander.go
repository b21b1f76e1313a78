package events

import (
	"github.com/shopspring/decimal"

	"github.com/koreacc/koreacc/internal/ledger"
	"github.com/koreacc/koreacc/internal/taxes"
)

// Expand turns an event into a balanced movement set. flowAccountID is the
// already-resolved account for the event's payment channel; rules are the
// currently effective tax rules for the event's company and flow kind.
//
// Every line is rounded to centavos independently, then the residual rounding
// error, if any, is absorbed by the first line on the lighter side so the set
// balances exactly before the posting engine sees it.
func Expand(ev Event, flowAccountID int64, rules []taxes.TaxRule) []ledger.MovementInput {
	base := ev.BaseAmount.Round(2)
	gross := ev.BaseAmount
	type taxLine struct {
		accountID int64
		amount    decimal.Decimal
	}
	var taxLines []taxLine
	for _, t := range rules {
		var raw decimal.Decimal
		switch t.Mode {
		case taxes.ModeRate:
			raw = ev.BaseAmount.Mul(t.Rate).Div(decimal.NewFromInt(100))
		case taxes.ModeFixed:
			raw = t.FixedFee
		default:
			continue
		}
		gross = gross.Add(raw)
		taxLines = append(taxLines, taxLine{accountID: t.AccountID, amount: raw.Round(2)})
	}

	flowSide := ledger.SideDebit
	if ev.FlowKind == FlowExpense {
		flowSide = ledger.SideCredit
	}
	otherSide := flowSide.Opposite()

	movs := []ledger.MovementInput{{
		AccountID: flowAccountID,
		Date:      ev.Date,
		Side:      flowSide,
		Amount:    gross.Round(2),
	}, {
		AccountID: ev.CounterpartAccountID,
		Date:      ev.Date,
		Side:      otherSide,
		Amount:    base,
	}}
	for _, t := range taxLines {
		movs = append(movs, ledger.MovementInput{
			AccountID: t.accountID,
			Date:      ev.Date,
			Side:      otherSide,
			Amount:    t.amount,
		})
	}
	return balance(movs)
}

// balance applies the centavo correction: if independent rounding left the
// sides off by a residual, the first line on the lighter side grows by it.
func balance(movs []ledger.MovementInput) []ledger.MovementInput {
	debits, credits := ledger.Totals(movs)
	diff := debits.Sub(credits)
	if diff.IsZero() {
		return movs
	}
	short := ledger.SideCredit
	if diff.IsNegative() {
		short = ledger.SideDebit
		diff = diff.Neg()
	}
	for i := range movs {
		if movs[i].Side == short {
			movs[i].Amount = movs[i].Amount.Add(diff)
			break
		}
	}
	return movs
}
