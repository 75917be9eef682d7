package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/go-utils/errs"
)

// =============================================================================
// ERROR CODES
// =============================================================================

// Error code constants for structured errors.
const (
	CodeConfigError         = "CONFIG_ERROR"
	CodeValidationError     = "VALIDATION_ERROR"
	CodeUnknownReference    = "UNKNOWN_REFERENCE"
	CodeCircularDependency  = "CIRCULAR_DEPENDENCY"
	CodeMissingDeclaration  = "MISSING_DECLARATION"
	CodeContractViolation   = "CONTRACT_VIOLATION"
	CodeIllegalTransition   = "ILLEGAL_TRANSITION"
	CodeNotFound            = "NOT_FOUND"
	CodeDuplicateDefinition = "DUPLICATE_DEFINITION"
)

// =============================================================================
// STRUCTURED ERROR
// =============================================================================

// AgataError represents a structured error with a code and context.
type AgataError = errs.Error

// ErrConfigError creates a config error.
func ErrConfigError(message string, cause error) *AgataError {
	return errs.NewError(CodeConfigError, message, cause)
}

// ErrValidation creates a validation error for a malformed unit descriptor.
func ErrValidation(kind, name, message string) *AgataError {
	return withContext(errs.NewError(CodeValidationError, describe(kind, name)+": "+message, nil),
		"kind", kind, "unit", name)
}

// ErrUnknownReference creates an error for a declared dependency that does
// not exist in the registry.
func ErrUnknownReference(kind, name, refKind, ref string) *AgataError {
	msg := fmt.Sprintf("%s requires unknown %s %q", describe(kind, name), refKind, ref)

	return withContext(errs.NewError(CodeUnknownReference, msg, nil),
		"kind", kind, "unit", name, "reference", ref)
}

// ErrCircularDependency creates a circular dependency error. The path is the
// full chain ending with the repeated name.
func ErrCircularDependency(kind string, path []string) *AgataError {
	return withContext(errs.NewError(CodeCircularDependency,
		"found "+kind+"s circular dependency: "+strings.Join(path, " -> "), nil),
		"kind", kind, "path", path)
}

// ErrMissingDeclaration creates an error for a unit that needs singletons the
// owning service did not declare.
func ErrMissingDeclaration(kind, name, service string, missing []string) *AgataError {
	msg := fmt.Sprintf("%s in service %q requires not included singleton(s): %s",
		describe(kind, name), service, quoteAll(missing))

	return withContext(errs.NewError(CodeMissingDeclaration, msg, nil),
		"kind", kind, "unit", name, "service", service, "missing", missing)
}

// ErrContractViolation creates an error for a constructor that returned a value
// of the wrong shape.
func ErrContractViolation(kind, name, message string) *AgataError {
	return withContext(errs.NewError(CodeContractViolation, describe(kind, name)+" "+message, nil),
		"kind", kind, "unit", name)
}

// ErrIllegalTransition creates a lifecycle transition error.
func ErrIllegalTransition(kind, name, message string) *AgataError {
	return withContext(errs.NewError(CodeIllegalTransition, describe(kind, name)+" "+message, nil),
		"kind", kind, "unit", name)
}

// ErrNotFound creates an error for unknown names requested by a caller.
func ErrNotFound(kind string, names ...string) *AgataError {
	var msg string
	if len(names) == 1 {
		msg = fmt.Sprintf("%s %q not found", kind, names[0])
	} else {
		msg = "unknown " + kind + "s: " + strings.Join(names, ", ")
	}

	return withContext(errs.NewError(CodeNotFound, msg, nil),
		"kind", kind, "names", names)
}

// ErrDuplicateDefinition creates an error for a name defined twice.
func ErrDuplicateDefinition(kind, name string) *AgataError {
	return withContext(errs.NewError(CodeDuplicateDefinition,
		fmt.Sprintf("%s with name %q already exists", kind, name), nil),
		"kind", kind, "unit", name)
}

// withContext attaches key/value pairs to err. WithContext on errs.Error
// returns the ContextualError interface, so the typed pointer is kept here.
func withContext(err *AgataError, pairs ...any) *AgataError {
	for i := 0; i+1 < len(pairs); i += 2 {
		key, _ := pairs[i].(string)
		err.WithContext(key, pairs[i+1])
	}

	return err
}

func describe(kind, name string) string {
	if name == "" {
		return kind
	}

	return fmt.Sprintf("%s %q", kind, name)
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}

	return strings.Join(quoted, ", ")
}

// =============================================================================
// UNIT ERRORS
// =============================================================================

// UnitError wraps a failure returned by user code (a constructor, handler or
// teardown function) with the unit it belongs to.
type UnitError struct {
	Kind      string
	Name      string
	Operation string
	Err       error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Kind, e.Name, e.Operation, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface for UnitError. Empty fields on either side
// act as wildcards.
func (e *UnitError) Is(target error) bool {
	t, ok := target.(*UnitError)
	if !ok {
		return false
	}

	return (e.Kind == "" || t.Kind == "" || e.Kind == t.Kind) &&
		(e.Name == "" || t.Name == "" || e.Name == t.Name) &&
		(e.Operation == "" || t.Operation == "" || e.Operation == t.Operation)
}

// NewUnitError creates a new unit error.
func NewUnitError(kind, name, operation string, err error) *UnitError {
	return &UnitError{
		Kind:      kind,
		Name:      name,
		Operation: operation,
		Err:       err,
	}
}

// =============================================================================
// STANDARD ERRORS PACKAGE INTEGRATION
// =============================================================================

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errs.New(text)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// =============================================================================
// SENTINEL ERRORS (for use with Is)
// =============================================================================

var (
	// ErrConfigErrorSentinel matches config errors.
	ErrConfigErrorSentinel = &AgataError{Code: CodeConfigError}

	// ErrValidationSentinel matches descriptor validation errors.
	ErrValidationSentinel = &AgataError{Code: CodeValidationError}

	// ErrUnknownReferenceSentinel matches unknown reference errors.
	ErrUnknownReferenceSentinel = &AgataError{Code: CodeUnknownReference}

	// ErrCircularDependencySentinel matches circular dependency errors.
	ErrCircularDependencySentinel = &AgataError{Code: CodeCircularDependency}

	// ErrMissingDeclarationSentinel matches missing singleton declaration errors.
	ErrMissingDeclarationSentinel = &AgataError{Code: CodeMissingDeclaration}

	// ErrContractViolationSentinel matches contract violation errors.
	ErrContractViolationSentinel = &AgataError{Code: CodeContractViolation}

	// ErrIllegalTransitionSentinel matches illegal lifecycle transition errors.
	ErrIllegalTransitionSentinel = &AgataError{Code: CodeIllegalTransition}

	// ErrNotFoundSentinel matches not found errors.
	ErrNotFoundSentinel = &AgataError{Code: CodeNotFound}

	// ErrDuplicateDefinitionSentinel matches duplicate definition errors.
	ErrDuplicateDefinitionSentinel = &AgataError{Code: CodeDuplicateDefinition}
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation checks if the error is a descriptor validation error.
func IsValidation(err error) bool {
	return Is(err, ErrValidationSentinel)
}

// IsUnknownReference checks if the error is an unknown reference error.
func IsUnknownReference(err error) bool {
	return Is(err, ErrUnknownReferenceSentinel)
}

// IsCircularDependency checks if the error is a circular dependency error.
func IsCircularDependency(err error) bool {
	return Is(err, ErrCircularDependencySentinel)
}

// IsMissingDeclaration checks if the error is a missing declaration error.
func IsMissingDeclaration(err error) bool {
	return Is(err, ErrMissingDeclarationSentinel)
}

// IsContractViolation checks if the error is a contract violation error.
func IsContractViolation(err error) bool {
	return Is(err, ErrContractViolationSentinel)
}

// IsIllegalTransition checks if the error is an illegal transition error.
func IsIllegalTransition(err error) bool {
	return Is(err, ErrIllegalTransitionSentinel)
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return Is(err, ErrNotFoundSentinel)
}

// IsDuplicateDefinition checks if the error is a duplicate definition error.
func IsDuplicateDefinition(err error) bool {
	return Is(err, ErrDuplicateDefinitionSentinel)
}

// IsConfigError checks if the error is a config error.
func IsConfigError(err error) bool {
	return Is(err, ErrConfigErrorSentinel)
}
