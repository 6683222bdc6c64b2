package sender

// CodeSender delivers a one-time login code to the holder of a CURP.
// Delivery transport (SMS, email) lives outside this service; the API
// only depends on this interface.
type CodeSender interface {
	SendOTP(curp, code string) error
}
