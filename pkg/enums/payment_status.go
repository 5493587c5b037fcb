package enums

import (
	"fmt"
	"strings"
)

// PaymentStatus is the bookkeeping state of a payment_intents row.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusCanceled PaymentStatus = "canceled"
)

// terminal marks statuses a late webhook must not overwrite. A failed intent
// can still be paid on a later attempt, so it stays open.
var paymentStatusTerminal = map[PaymentStatus]bool{
	PaymentStatusPending:  false,
	PaymentStatusPaid:     true,
	PaymentStatusFailed:   false,
	PaymentStatusCanceled: true,
}

func (p PaymentStatus) String() string {
	return string(p)
}

func (p PaymentStatus) IsValid() bool {
	_, ok := paymentStatusTerminal[p]
	return ok
}

func (p PaymentStatus) IsTerminal() bool {
	return paymentStatusTerminal[p]
}

// TerminalPaymentStatuses returns the terminal statuses as column values.
func TerminalPaymentStatuses() []string {
	return []string{string(PaymentStatusPaid), string(PaymentStatusCanceled)}
}

// ParsePaymentStatus accepts the column value in any case.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	status := PaymentStatus(strings.ToLower(strings.TrimSpace(value)))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid payment status %q", value)
	}
	return status, nil
}
