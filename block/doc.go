// Package block implements the IEEE 488.2 definite-length arbitrary block used to
// carry untyped binary payloads (waveforms, screen dumps, calibration tables) inside
// the command and response streams of an instrument.
//
// A definite-length block has the form:
//
//	#<n><length><payload>
//
//   - '#' marks the start of the block.
//   - <n> is a single ASCII digit in the range 1-9 giving the width of <length>.
//   - <length> is <n> zero-padded ASCII decimal digits giving the payload size in bytes.
//   - <payload> is exactly <length> raw bytes.
//
// The encoder always emits an 8-digit length field, so a header produced by [Encode]
// is [HeaderSize] bytes long. The decoder accepts any width from 1 to 9.
package block
