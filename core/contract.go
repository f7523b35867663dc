package core

import (
	"net/http"
	"strconv"
)

// Response header names of the entitlement contract.
const (
	HeaderBillingState         = "X-Billing-State"
	HeaderGracePeriodRemaining = "X-Grace-Period-Remaining"
	HeaderActionRequired       = "X-Billing-Action-Required"
)

// ErrorBody is the machine-readable denial payload.
type ErrorBody struct {
	Error           string          `json:"error"`
	Code            string          `json:"code"`
	Category        string          `json:"category"`
	BillingState    string          `json:"billing_state"`
	PlanID          string          `json:"plan_id,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	MachineReadable MachineReadable `json:"machine_readable"`
}

// MachineReadable duplicates the denial facts in a stable nested block for
// clients that only parse this section.
type MachineReadable struct {
	Code         string `json:"code"`
	BillingState string `json:"billing_state"`
	Category     string `json:"category"`
}

// Contract is the response-boundary rendering of a Decision. Status is a
// suggestion; binding it to the wire is the HTTP layer's concern.
type Contract struct {
	Status  int
	Headers map[string]string
	Body    *ErrorBody
}

// RenderContract maps a Decision onto headers, a suggested status, and a
// denial body when a machine code is present.
//
// X-Billing-State is always set. X-Grace-Period-Remaining appears only in
// grace_period. X-Billing-Action-Required appears whenever an action is
// required.
func RenderContract(d Decision) Contract {
	headers := map[string]string{
		HeaderBillingState: string(d.BillingState),
	}
	if d.BillingState == BillingGracePeriod && d.GracePeriodRemainingDays != nil {
		headers[HeaderGracePeriodRemaining] = strconv.Itoa(*d.GracePeriodRemainingDays)
	}
	if d.ActionRequired != ActionNone && d.ActionRequired != "" {
		headers[HeaderActionRequired] = string(d.ActionRequired)
	}

	c := Contract{Status: http.StatusOK, Headers: headers}
	if d.IsEntitled {
		return c
	}

	c.Status = http.StatusPaymentRequired
	if d.Code != "" {
		c.Body = &ErrorBody{
			Error:        "entitlement_denied",
			Code:         d.Code,
			Category:     string(d.Category),
			BillingState: string(d.BillingState),
			PlanID:       d.PlanID,
			Reason:       d.Reason,
			MachineReadable: MachineReadable{
				Code:         d.Code,
				BillingState: string(d.BillingState),
				Category:     string(d.Category),
			},
		}
	}
	return c
}
