package booking

// Ledger idempotency keys derived from a booking. They make every money
// movement of a booking happen at most once across retries.

func PaymentKey(bookingID string) string {
	return "booking:" + bookingID + ":payment"
}

func RefundKey(bookingID string) string {
	return "booking:" + bookingID + ":refund"
}

func HostCreditKey(bookingID string) string {
	return "booking:" + bookingID + ":host-credit"
}

// OrderRefundKey marks a gateway order whose funds went back to the guest
// wallet. A token for that order can no longer pay for a booking.
func OrderRefundKey(orderID string) string {
	return "gateway-order:" + orderID + ":refund"
}
