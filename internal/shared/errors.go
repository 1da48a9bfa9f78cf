package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Input validation errors
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")

	// Fatal run errors
	ErrUnreadableInput = fmt.Errorf("input root unreadable")
	ErrDatabase        = fmt.Errorf("database error")

	// Unit abort causes, carried by outcomes rather than returned
	ErrCopy           = fmt.Errorf("copy failed")
	ErrCorruptArchive = fmt.Errorf("corrupt archive")
	ErrNoDecodable    = fmt.Errorf("no decodable frames")
	ErrConversion     = fmt.Errorf("conversion failed")
	ErrUnitTimeout    = fmt.Errorf("unit deadline exceeded")

	// Volume codec errors
	ErrDecode = fmt.Errorf("decode failed")
	ErrEncode = fmt.Errorf("encode failed")

	ErrRunNotFound = fmt.Errorf("run not found")
)
