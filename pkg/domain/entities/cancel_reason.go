package entities

import "fmt"

// CancelReason is the mandatory reason code for reversing a hard reservation
type CancelReason string

const (
	CancelInputError      CancelReason = "input_error"
	CancelWrongQuantity   CancelReason = "wrong_quantity"
	CancelWrongLot        CancelReason = "wrong_lot"
	CancelWrongProduct    CancelReason = "wrong_product"
	CancelCustomerRequest CancelReason = "customer_request"
	CancelDuplicate       CancelReason = "duplicate"
	CancelOther           CancelReason = "other"
)

// CancelReasons lists every accepted reason in display order
var CancelReasons = []CancelReason{
	CancelInputError,
	CancelWrongQuantity,
	CancelWrongLot,
	CancelWrongProduct,
	CancelCustomerRequest,
	CancelDuplicate,
	CancelOther,
}

// Valid reports whether r is one of the accepted reasons
func (r CancelReason) Valid() bool {
	for _, known := range CancelReasons {
		if r == known {
			return true
		}
	}
	return false
}

// ParseCancelReason converts a wire value into a CancelReason
func ParseCancelReason(s string) (CancelReason, error) {
	r := CancelReason(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown cancel reason %q", s)
	}
	return r, nil
}
