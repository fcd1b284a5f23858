package block

import (
	"errors"
	"fmt"
)

const (
	// Marker is the first byte of every definite-length block.
	Marker = '#'

	// LengthDigits is the width of the length field written by the encoder.
	LengthDigits = 8

	// HeaderSize is the size of the header written by the encoder: '#', the digit count and the length field.
	HeaderSize = 2 + LengthDigits

	// MaxHeaderSize is the largest header the decoder accepts ('#9' followed by 9 digits).
	MaxHeaderSize = 2 + 9

	// MaxPayloadSize is the largest payload that fits an 8-digit length field.
	MaxPayloadSize = 99_999_999
)

var (
	// ErrMalformedBlock indicates the input is not a valid definite-length block:
	// the marker is missing, the digit count or length field is invalid, or the
	// input is shorter than the declared payload.
	ErrMalformedBlock = errors.New("malformed definite-length block")

	// ErrPayloadTooLarge indicates the payload does not fit an 8-digit length field.
	ErrPayloadTooLarge = errors.New("payload exceeds definite-length block limit")
)

// Encode returns header followed by payload framed as a definite-length block.
//
// The output length is len(header) + HeaderSize + len(payload).
func Encode(header []byte, payload []byte) ([]byte, error) {
	return AppendEncode(make([]byte, 0, len(header)+HeaderSize+len(payload)), header, payload)
}

// AppendEncode appends header and the definite-length block of payload to dst and
// returns the extended slice.
func AppendEncode(dst []byte, header []byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return dst, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	dst = append(dst, header...)
	dst = append(dst, Marker, '0'+LengthDigits)

	// zero-padded decimal length, most significant digit first
	var digits [LengthDigits]byte
	n := len(payload)
	for i := LengthDigits - 1; i >= 0; i-- {
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	dst = append(dst, digits[:]...)

	return append(dst, payload...), nil
}

// Decode returns the payload of the definite-length block at the start of raw.
//
// The returned slice aliases raw. Bytes following the payload are ignored.
func Decode(raw []byte) ([]byte, error) {
	payload, _, err := Parse(raw)
	return payload, err
}

// Parse decodes the definite-length block at the start of raw and reports the
// number of bytes the block occupies, header included.
//
// Truncated input is an error, never a partial payload.
func Parse(raw []byte) (payload []byte, consumed int, err error) {
	if len(raw) < 2 {
		return nil, 0, fmt.Errorf("%w: %d bytes is too short for a header", ErrMalformedBlock, len(raw))
	}

	if raw[0] != Marker {
		return nil, 0, fmt.Errorf("%w: starts with %q instead of '#'", ErrMalformedBlock, raw[0])
	}

	if raw[1] < '1' || raw[1] > '9' {
		return nil, 0, fmt.Errorf("%w: invalid digit count %q", ErrMalformedBlock, raw[1])
	}
	ndigits := int(raw[1] - '0')

	headerLen := 2 + ndigits
	if len(raw) < headerLen {
		return nil, 0, fmt.Errorf("%w: length field truncated", ErrMalformedBlock)
	}

	length := 0
	for _, c := range raw[2:headerLen] {
		if c < '0' || c > '9' {
			return nil, 0, fmt.Errorf("%w: non-decimal length field %q", ErrMalformedBlock, raw[2:headerLen])
		}
		length = length*10 + int(c-'0')
	}

	if len(raw)-headerLen < length {
		return nil, 0, fmt.Errorf("%w: declared %d payload bytes, got %d", ErrMalformedBlock, length, len(raw)-headerLen)
	}

	consumed = headerLen + length

	return raw[headerLen:consumed], consumed, nil
}
