package transport

import "strconv"

// ErrorCode is a VXI-11 device error code as carried in write, read and link replies.
type ErrorCode int32

// Device error codes of the VXI-11 protocol.
const (
	NoError                   ErrorCode = 0
	SyntaxError               ErrorCode = 1
	DeviceNotAccessible       ErrorCode = 3
	InvalidLinkIdentifier     ErrorCode = 4
	ParameterError            ErrorCode = 5
	ChannelNotEstablished     ErrorCode = 6
	OperationNotSupported     ErrorCode = 8
	OutOfResources            ErrorCode = 9
	DeviceLockedByAnotherLink ErrorCode = 11
	NoLockHeldByThisLink      ErrorCode = 12
	IOTimeout                 ErrorCode = 15
	IOError                   ErrorCode = 17
	InvalidAddress            ErrorCode = 21
	Abort                     ErrorCode = 23
	ChannelAlreadyEstablished ErrorCode = 29
)

var errorCodeNames = map[ErrorCode]string{
	NoError:                   "no error",
	SyntaxError:               "syntax error",
	DeviceNotAccessible:       "device not accessible",
	InvalidLinkIdentifier:     "invalid link identifier",
	ParameterError:            "parameter error",
	ChannelNotEstablished:     "channel not established",
	OperationNotSupported:     "operation not supported",
	OutOfResources:            "out of resources",
	DeviceLockedByAnotherLink: "device locked by another link",
	NoLockHeldByThisLink:      "no lock held by this link",
	IOTimeout:                 "I/O timeout",
	IOError:                   "I/O error",
	InvalidAddress:            "invalid address",
	Abort:                     "abort",
	ChannelAlreadyEstablished: "channel already established",
}

// String returns the description of the code.
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}

	return "unknown error " + strconv.Itoa(int(c))
}

// IsTimeout reports whether the code is the I/O timeout code.
func (c ErrorCode) IsTimeout() bool {
	return c == IOTimeout
}
