package eventbus

import "github.com/forgeengine/vkr/vkrerr"

// payloadRing is the size-prefixed circular buffer spec.md §4.2 describes
// for event payload storage: each push writes a 4-byte length prefix
// followed by the data, and release happens strictly FIFO as the bus
// worker finishes with the oldest outstanding payload.
type payloadRing struct {
	buf   []byte
	head  int // first byte of the oldest live block
	tail  int // first free byte after the newest live block
	used  int
}

func newPayloadRing(size int) *payloadRing {
	if size < 16 {
		size = 16
	}
	return &payloadRing{buf: make([]byte, size)}
}

// push copies data into the ring, prefixed with its length, and returns the
// byte offset of the block's data region (for slicing it back out) and the
// total block size (prefix + data) to later release via pop.
func (r *payloadRing) push(data []byte) (offset, blockSize int, err error) {
	need := 4 + len(data)
	if need > len(r.buf) {
		return 0, 0, vkrerr.New(vkrerr.InvalidParameter, "eventbus: payload of %d bytes exceeds ring capacity %d", len(data), len(r.buf))
	}
	if r.used+need > len(r.buf) {
		return 0, 0, vkrerr.New(vkrerr.ResourceCreationFailed, "eventbus: payload ring overflow (used=%d, need=%d, cap=%d)", r.used, need, len(r.buf))
	}
	start := r.tail
	for i := 0; i < 4; i++ {
		r.buf[(start+i)%len(r.buf)] = byte(len(data) >> (8 * i))
	}
	dataStart := (start + 4) % len(r.buf)
	for i, b := range data {
		r.buf[(dataStart+i)%len(r.buf)] = b
	}
	r.tail = (start + need) % len(r.buf)
	r.used += need
	return dataStart, need, nil
}

// read returns a freshly copied []byte for the block at offset with the
// given data length (the caller already knows it from the length prefix it
// decoded, or tracks it alongside the envelope).
func (r *payloadRing) read(offset, length int) []byte {
	out := make([]byte, length)
	for i := range out {
		out[i] = r.buf[(offset+i)%len(r.buf)]
	}
	return out
}

// pop releases the oldest blockSize bytes. Callers must release blocks in
// the same order they were pushed (FIFO), matching spec.md's "free happens
// in FIFO order as events complete processing".
func (r *payloadRing) pop(blockSize int) {
	r.head = (r.head + blockSize) % len(r.buf)
	r.used -= blockSize
}
