package cryptostream

// SecureBuffer holds key material that the owner scrubs to zero on release.
// It is not safe for concurrent use.
type SecureBuffer struct {
	data  []byte
	wiped bool
}

// NewSecureBuffer wraps existing bytes. The buffer takes ownership.
func NewSecureBuffer(data []byte) *SecureBuffer {
	return &SecureBuffer{data: data}
}

// Bytes returns the underlying key material. Callers must not retain the
// slice past Wipe.
func (b *SecureBuffer) Bytes() []byte {
	if b.wiped {
		return nil
	}
	return b.data
}

// Len returns the key length, 0 after Wipe.
func (b *SecureBuffer) Len() int {
	if b.wiped {
		return 0
	}
	return len(b.data)
}

// Wiped reports whether the buffer has been scrubbed.
func (b *SecureBuffer) Wiped() bool {
	return b.wiped
}

// Wipe zeroes the key material. Safe to call more than once.
func (b *SecureBuffer) Wipe() {
	for i := range b.data {
		b.data[i] = 0
	}
	b.wiped = true
}
