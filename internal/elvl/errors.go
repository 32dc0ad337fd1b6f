package elvl

import "fmt"

// ErrorKind classifies load failures
type ErrorKind int

const (
	TruncatedInput     ErrorKind = iota + 1 // Header or payload shorter than declared
	InvalidMagic                            // Metadata magic mismatch; reported as absence, never returned
	MalformedAttribute                      // ATTR payload without '='
	InvalidUTF8                             // Name or attribute text is not UTF-8
	TileOutOfBounds                         // Tile write outside the 1024x1024 grid
	TruncatedRunRecord                      // Two-byte run record cut short
	ImageDecodeFailure                      // Tileset bitmap could not be decoded
)

func (k ErrorKind) String() string {
	switch k {
	case TruncatedInput:
		return "truncated input"
	case InvalidMagic:
		return "invalid magic"
	case MalformedAttribute:
		return "malformed attribute"
	case InvalidUTF8:
		return "invalid utf-8"
	case TileOutOfBounds:
		return "tile out of bounds"
	case TruncatedRunRecord:
		return "truncated run record"
	case ImageDecodeFailure:
		return "image decode failure"
	default:
		return "unknown error"
	}
}

// Error is a level decoding failure. Errors compare equal under
// errors.Is when their kinds match, so callers test against the
// sentinels below.
type Error struct {
	Kind    ErrorKind
	Offset  int    // Byte offset within the structure being decoded
	Message string // Detail
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrTruncatedInput     = &Error{Kind: TruncatedInput}
	ErrInvalidMagic       = &Error{Kind: InvalidMagic}
	ErrMalformedAttribute = &Error{Kind: MalformedAttribute}
	ErrInvalidUTF8        = &Error{Kind: InvalidUTF8}
	ErrTileOutOfBounds    = &Error{Kind: TileOutOfBounds}
	ErrTruncatedRunRecord = &Error{Kind: TruncatedRunRecord}
	ErrImageDecodeFailure = &Error{Kind: ImageDecodeFailure}
)

func newError(kind ErrorKind, offset int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Offset: offset, Message: fmt.Sprintf(format, args...)}
}
