// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// IOControl lets a buffer signal backpressure to the reactor side of a
// connection without either side taking the other's lock. Calls must be
// idempotent: asking twice to suspend input has the same effect as once.
type IOControl interface {
	SuspendInput()
	RequestInput()
	SuspendOutput()
	RequestOutput()
}

// Decoder pulls already-framed entity bytes off the wire. Decode must
// never block: when no data is currently available it returns (0,
// false, nil). endOfEntity becomes true once the entity as framed by
// Content-Length or the terminal chunk is exhausted, and stays true on
// every later call.
type Decoder interface {
	Decode(dst []byte) (n int, endOfEntity bool, err error)
}

// Encoder pushes entity bytes onto the wire using whatever framing the
// connection negotiated (identity or chunked). Encode must never block.
// Complete is called exactly once after every byte has been accepted,
// to emit a final chunk trailer or simply to note EOF for identity
// framing.
type Encoder interface {
	Encode(src []byte) (n int, err error)
	Complete() error
}
