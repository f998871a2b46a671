// Package phases implements the per-round algorithm components that run
// inside one bulk-synchronous phase: Sparsify, Stall, Exponentiate, Local
// MIS, Integrate, and Finish. Every component is a method on Engine and
// talks to its peers exclusively through Engine.Transport.Exchange.
package phases

import "encoding/binary"

// Every wire message in this package is a flat run of fixed-width
// big-endian records; appendI64/appendI32 build them, readI64/readI32
// consume them in the same order they were appended.

func appendI64(buf []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(v))
}

func appendI32(buf []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(buf, uint32(v))
}

func readI64(buf []byte) (int64, []byte) {
	return int64(binary.BigEndian.Uint64(buf)), buf[8:]
}

func readI32(buf []byte) (int32, []byte) {
	return int32(binary.BigEndian.Uint32(buf)), buf[4:]
}

// appendI64Slice appends a length-prefixed run of int64s.
func appendI64Slice(buf []byte, vals []int64) []byte {
	buf = appendI32(buf, int32(len(vals)))
	for _, v := range vals {
		buf = appendI64(buf, v)
	}
	return buf
}

// readI64Slice consumes a length-prefixed run of int64s.
func readI64Slice(buf []byte) ([]int64, []byte) {
	n, buf := readI32(buf)
	vals := make([]int64, n)
	for i := range vals {
		vals[i], buf = readI64(buf)
	}
	return vals, buf
}
