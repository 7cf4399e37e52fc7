// Package ferr collects the firmware's error taxonomy (spec.md §7) as
// sentinel errors, following the teacher's plain errors.New style
// (core/driver_registry.go, core/stepper.go) rather than a hierarchy of
// exception types.
package ferr

import "errors"

// Kind identifies one of the error kinds spec.md §7 names. Only three
// outcomes ever reach the UI (Finished, aborted-with-kind, Failure
// mode); Kind is how an abort communicates which.
type Kind int

const (
	KindNone Kind = iota
	KindInvalidControlBlock
	KindInvalidParameter
	KindAlreadyStarted
	KindSdcardFailure
	KindRamFailure
	KindPreloadRequired
	KindSkip
	KindFileNotFound
	KindFileNotGcode
	KindFileNotMaterial
	KindGcodeLineTooLong
	KindTooManyMaterials
)

func (k Kind) String() string {
	switch k {
	case KindInvalidControlBlock:
		return "InvalidControlBlock"
	case KindInvalidParameter:
		return "InvalidParameter"
	case KindAlreadyStarted:
		return "AlreadyStarted"
	case KindSdcardFailure:
		return "SdcardFailure"
	case KindRamFailure:
		return "RamFailure"
	case KindPreloadRequired:
		return "PreloadRequired"
	case KindSkip:
		return "Skip"
	case KindFileNotFound:
		return "FileNotFound"
	case KindFileNotGcode:
		return "FileNotGcode"
	case KindFileNotMaterial:
		return "FileNotMaterial"
	case KindGcodeLineTooLong:
		return "GcodeLineTooLong"
	case KindTooManyMaterials:
		return "TooManyMaterials"
	default:
		return "None"
	}
}

// FirmwareError wraps a Kind with a human-readable detail and an
// optional underlying cause (e.g. a block-store I/O error).
type FirmwareError struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *FirmwareError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Detail
}

func (e *FirmwareError) Unwrap() error { return e.Cause }

// New builds a FirmwareError with no underlying cause.
func New(kind Kind, detail string) error {
	return &FirmwareError{Kind: kind, Detail: detail}
}

// Wrap builds a FirmwareError carrying an underlying cause.
func Wrap(kind Kind, detail string, cause error) error {
	return &FirmwareError{Kind: kind, Detail: detail, Cause: cause}
}

// KindOf extracts the Kind from err, or KindNone if err is not (or does
// not wrap) a *FirmwareError.
func KindOf(err error) Kind {
	var fe *FirmwareError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindNone
}

// Is reports whether err is a FirmwareError of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// G-code parser family errors (spec.md §7). These are plain sentinels,
// not FirmwareError, since the parser works line-by-line with no
// surrounding device context to attach.
var (
	ErrUnknownCommand   = errors.New("gcode: unknown command")
	ErrUnknownParameter = errors.New("gcode: unknown parameter")
	ErrInvalidParam     = errors.New("gcode: invalid parameter value")
)
