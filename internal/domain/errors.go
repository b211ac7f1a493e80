package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Use with NewSubSystemError for subsystem-specific codes.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrDisabled     = fmt.Errorf("disabled")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrUnavailable  = fmt.Errorf("unavailable")
)

// Sentinel errors for the pin engine.
var (
	ErrInvalidPin       = fmt.Errorf("invalid gpio pin")
	ErrInvalidMode      = fmt.Errorf("invalid state value")
	ErrMissingParameter = fmt.Errorf("missing parameter")
	ErrStoreFailure     = fmt.Errorf("state store failure")
	ErrDriverFailure    = fmt.Errorf("pin driver failure")
	ErrConfigLoad       = fmt.Errorf("failed to load configuration")

	// Gateway errors.
	ErrGatewayAuthFailed = fmt.Errorf("gateway: authentication failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Engine.Apply")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "store", "driver"); used for ErrorCode dispatch
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsValidationError reports whether err was caused by bad caller input and
// should be answered with a 400 rather than logged as a fault.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidPin) ||
		errors.Is(err, ErrInvalidMode) ||
		errors.Is(err, ErrMissingParameter) ||
		errors.Is(err, ErrInvalidInput)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

const (
	CodeUnknown          ErrorCode = "UNKNOWN"
	CodeInvalidPin       ErrorCode = "INVALID_PIN"
	CodeInvalidMode      ErrorCode = "INVALID_MODE"
	CodeMissingParameter ErrorCode = "MISSING_PARAMETER"
	CodeStoreFailure     ErrorCode = "STORE_FAILURE"
	CodeDriverFailure    ErrorCode = "DRIVER_FAILURE"
	CodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	CodeGatewayAuth      ErrorCode = "GATEWAY_AUTH"

	// Subsystem-specific codes resolved through subSystemCodeMap.
	CodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	CodeStoreTimeout     ErrorCode = "STORE_TIMEOUT"
	CodeDriverTimeout    ErrorCode = "DRIVER_TIMEOUT"
	CodeRoutineNotFound  ErrorCode = "ROUTINE_NOT_FOUND"
	CodeRoutineInvalid   ErrorCode = "ROUTINE_INVALID"
	CodeMDNSDisabled     ErrorCode = "MDNS_DISABLED"
	CodeGRPCDisabled     ErrorCode = "GRPC_DISABLED"

	// Category error codes, the fallback when no subsystem code matches.
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeTimeout      ErrorCode = "TIMEOUT"
	CodeDisabled     ErrorCode = "DISABLED"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeUnavailable  ErrorCode = "UNAVAILABLE"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:     CodeNotFound,
	ErrTimeout:      CodeTimeout,
	ErrDisabled:     CodeDisabled,
	ErrInvalidInput: CodeInvalidInput,
	ErrUnavailable:  CodeUnavailable,

	ErrInvalidPin:        CodeInvalidPin,
	ErrInvalidMode:       CodeInvalidMode,
	ErrMissingParameter:  CodeMissingParameter,
	ErrStoreFailure:      CodeStoreFailure,
	ErrDriverFailure:     CodeDriverFailure,
	ErrConfigLoad:        CodeConfigLoad,
	ErrGatewayAuthFailed: CodeGatewayAuth,
}

// subSystemCodeMap maps (category sentinel, subsystem) pairs to specific ErrorCodes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrNotFound: {
		"routine": CodeRoutineNotFound,
	},
	ErrTimeout: {
		"store":  CodeStoreTimeout,
		"driver": CodeDriverTimeout,
	},
	ErrInvalidInput: {
		"routine": CodeRoutineInvalid,
	},
	ErrUnavailable: {
		"store": CodeStoreUnavailable,
	},
	ErrDisabled: {
		"mdns": CodeMDNSDisabled,
		"grpc": CodeGRPCDisabled,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
// If SubSystem is set, checks the subSystemCodeMap for a specific code.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
