package gpuio

// Code is a result code returned by runtime operations. It implements error
// so codes can flow through normal Go error returns and errors.Is checks,
// and it is what completion callbacks receive as the final status.
type Code int

const (
	// OK is the zero code. Operations return a nil error on success; OK only
	// appears in callbacks and request records.
	OK Code = 0

	ErrGeneral            Code = -1
	ErrNoMem              Code = -2
	ErrInvalidArg         Code = -3
	ErrNotFound           Code = -4
	ErrTimeout            Code = -5
	ErrIO                 Code = -6
	ErrNetwork            Code = -7
	ErrUnsupported        Code = -8
	ErrPermission         Code = -9
	ErrBusy               Code = -10
	ErrCanceled           Code = -11
	ErrDeviceLost         Code = -12
	ErrAlreadyInitialized Code = -13
	ErrNotInitialized     Code = -14
)

var codeStrings = map[Code]string{
	OK:                    "success",
	ErrGeneral:            "general error",
	ErrNoMem:              "out of memory",
	ErrInvalidArg:         "invalid argument",
	ErrNotFound:           "not found",
	ErrTimeout:            "timeout",
	ErrIO:                 "I/O error",
	ErrNetwork:            "network error",
	ErrUnsupported:        "unsupported operation",
	ErrPermission:         "permission denied",
	ErrBusy:               "resource busy",
	ErrCanceled:           "operation canceled",
	ErrDeviceLost:         "device lost",
	ErrAlreadyInitialized: "already initialized",
	ErrNotInitialized:     "not initialized",
}

func (c Code) String() string {
	if s, ok := codeStrings[c]; ok {
		return s
	}
	return "unknown error"
}

func (c Code) Error() string { return c.String() }
