package console

// EmergencyWrite is a standalone, lock-free polled writer at the
// fallback base, usable before the real console is initialized or when
// the main printer's mutex may already be held by a hart that is
// itself panicking. It never touches the kernel-wide console mutex.
func EmergencyWrite(s string) {
	Write(Fallback, []byte(s))
}
