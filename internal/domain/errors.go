package domain

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

type ErrorCategory int

const (
	CategoryValidation ErrorCategory = iota
	CategoryNetwork
	CategoryStorage
	CategoryBlock
	CategoryWorkflow
	CategoryTimeout
	CategoryConfiguration
	CategoryPermission
	CategoryResource
	CategoryInternal
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryNetwork:
		return "network"
	case CategoryStorage:
		return "storage"
	case CategoryBlock:
		return "block"
	case CategoryWorkflow:
		return "workflow"
	case CategoryTimeout:
		return "timeout"
	case CategoryConfiguration:
		return "configuration"
	case CategoryPermission:
		return "permission"
	case CategoryResource:
		return "resource"
	default:
		return "internal"
	}
}

type ErrorSeverity int

const (
	SeverityWarning ErrorSeverity = iota
	SeverityError
	SeverityCritical
)

func (s ErrorSeverity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "error"
	}
}

// ErrorContext carries structured metadata about where and during what
// operation an error was produced.
type ErrorContext struct {
	Component  string                 `json:"component,omitempty"`
	Operation  string                 `json:"operation,omitempty"`
	WorkflowID string                 `json:"workflow_id,omitempty"`
	RunID      string                 `json:"run_id,omitempty"`
	NodeID     string                 `json:"node_id,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	File       string                 `json:"file,omitempty"`
	Line       int                    `json:"line,omitempty"`
	Function   string                 `json:"function,omitempty"`
}

// DomainError is the rich error type used across the engine. Every error
// carries a category, an inferred machine code, retryability and
// user-facing flags, and the call site that produced it.
type DomainError struct {
	Category   ErrorCategory
	Severity   ErrorSeverity
	Code       string
	Message    string
	Retryable  bool
	UserFacing bool
	Timestamp  time.Time
	Context    *ErrorContext
	Cause      error
}

func (e *DomainError) Error() string {
	scope := e.Category.String()
	if e.Context != nil && e.Context.Component != "" {
		scope = scope + ":" + e.Context.Component
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", scope, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", scope, e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches errors by category so callers can branch on error class
// without caring about the exact message or code.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if errors.As(target, &other) {
		return e.Category == other.Category
	}
	return false
}

func (e *DomainError) WithComponent(component string) *DomainError {
	e.Context.Component = component
	return e
}

func (e *DomainError) WithOperation(operation string) *DomainError {
	e.Context.Operation = operation
	return e
}

func (e *DomainError) WithWorkflowID(workflowID string) *DomainError {
	e.Context.WorkflowID = workflowID
	return e
}

func (e *DomainError) WithRunID(runID string) *DomainError {
	e.Context.RunID = runID
	return e
}

func (e *DomainError) WithNodeID(nodeID string) *DomainError {
	e.Context.NodeID = nodeID
	return e
}

func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	e.Context.Details[key] = value
	return e
}

type ErrorOption func(*DomainError)

func WithComponent(component string) ErrorOption {
	return func(e *DomainError) { e.Context.Component = component }
}

func WithOperation(operation string) ErrorOption {
	return func(e *DomainError) { e.Context.Operation = operation }
}

func WithWorkflowID(workflowID string) ErrorOption {
	return func(e *DomainError) { e.Context.WorkflowID = workflowID }
}

func WithRunID(runID string) ErrorOption {
	return func(e *DomainError) { e.Context.RunID = runID }
}

func WithNodeID(nodeID string) ErrorOption {
	return func(e *DomainError) { e.Context.NodeID = nodeID }
}

func WithSeverity(severity ErrorSeverity) ErrorOption {
	return func(e *DomainError) { e.Severity = severity }
}

func WithContextDetail(key string, value interface{}) ErrorOption {
	return func(e *DomainError) { e.Context.Details[key] = value }
}

type categoryProfile struct {
	retryable  bool
	userFacing bool
}

var categoryProfiles = map[ErrorCategory]categoryProfile{
	CategoryValidation:    {retryable: false, userFacing: true},
	CategoryNetwork:       {retryable: true, userFacing: false},
	CategoryStorage:       {retryable: false, userFacing: false},
	CategoryBlock:         {retryable: true, userFacing: false},
	CategoryWorkflow:      {retryable: false, userFacing: false},
	CategoryTimeout:       {retryable: true, userFacing: false},
	CategoryConfiguration: {retryable: false, userFacing: true},
	CategoryPermission:    {retryable: false, userFacing: true},
	CategoryResource:      {retryable: true, userFacing: false},
}

func newDomainError(category ErrorCategory, message string, cause error, site *ErrorContext, opts ...ErrorOption) *DomainError {
	profile := categoryProfiles[category]
	err := &DomainError{
		Category:   category,
		Severity:   SeverityError,
		Code:       inferCode(category, message),
		Message:    message,
		Retryable:  profile.retryable,
		UserFacing: profile.userFacing,
		Timestamp:  time.Now(),
		Context:    site,
		Cause:      cause,
	}
	for _, opt := range opts {
		opt(err)
	}
	return err
}

func captureCallSite(skip int) *ErrorContext {
	site := &ErrorContext{Details: make(map[string]interface{})}
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return site
	}
	site.File = file
	site.Line = line
	if fn := runtime.FuncForPC(pc); fn != nil {
		site.Function = fn.Name()
	}
	return site
}

// inferCode derives a stable machine-readable code from the category and
// the phrasing of the message.
func inferCode(category ErrorCategory, message string) string {
	msg := strings.ToLower(message)
	switch category {
	case CategoryValidation:
		if strings.Contains(msg, "required") {
			return "VALIDATION_REQUIRED"
		}
		return "VALIDATION_INVALID"
	case CategoryNetwork:
		if strings.Contains(msg, "timeout") {
			return "NETWORK_TIMEOUT"
		}
		if strings.Contains(msg, "connection") || strings.Contains(msg, "refused") {
			return "NETWORK_CONNECTION"
		}
		return "NETWORK_ERROR"
	case CategoryStorage:
		if strings.Contains(msg, "not found") {
			return "STORAGE_NOT_FOUND"
		}
		if strings.Contains(msg, "conflict") {
			return "STORAGE_CONFLICT"
		}
		return "STORAGE_ERROR"
	case CategoryBlock:
		if strings.Contains(msg, "not registered") || strings.Contains(msg, "unregistered") {
			return "BLOCK_UNREGISTERED"
		}
		if strings.Contains(msg, "panic") {
			return "BLOCK_PANIC"
		}
		return "BLOCK_ERROR"
	case CategoryWorkflow:
		if strings.Contains(msg, "timeout") {
			return "WORKFLOW_TIMEOUT"
		}
		if strings.Contains(msg, "state") {
			return "WORKFLOW_STATE"
		}
		if strings.Contains(msg, "cycle") {
			return "WORKFLOW_CYCLE"
		}
		return "WORKFLOW_ERROR"
	case CategoryTimeout:
		return "TIMEOUT_EXCEEDED"
	case CategoryConfiguration:
		return "CONFIGURATION_INVALID"
	case CategoryPermission:
		return "PERMISSION_DENIED"
	case CategoryResource:
		if strings.Contains(msg, "limit") {
			return "RESOURCE_LIMIT"
		}
		if strings.Contains(msg, "full") || strings.Contains(msg, "exhausted") {
			return "RESOURCE_EXHAUSTED"
		}
		return "RESOURCE_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

func NewValidationError(message string, cause error, opts ...ErrorOption) *DomainError {
	return newDomainError(CategoryValidation, message, cause, captureCallSite(2), opts...)
}

func NewNetworkError(message string, cause error, opts ...ErrorOption) *DomainError {
	return newDomainError(CategoryNetwork, message, cause, captureCallSite(2), opts...)
}

func NewStorageError(message string, cause error, opts ...ErrorOption) *DomainError {
	return newDomainError(CategoryStorage, message, cause, captureCallSite(2), opts...)
}

func NewBlockError(message string, cause error, opts ...ErrorOption) *DomainError {
	return newDomainError(CategoryBlock, message, cause, captureCallSite(2), opts...)
}

func NewWorkflowError(message string, cause error, opts ...ErrorOption) *DomainError {
	return newDomainError(CategoryWorkflow, message, cause, captureCallSite(2), opts...)
}

func NewTimeoutError(message string, cause error, opts ...ErrorOption) *DomainError {
	return newDomainError(CategoryTimeout, message, cause, captureCallSite(2), opts...)
}

func NewConfigurationError(message string, cause error, opts ...ErrorOption) *DomainError {
	return newDomainError(CategoryConfiguration, message, cause, captureCallSite(2), opts...)
}

func NewPermissionError(message string, cause error, opts ...ErrorOption) *DomainError {
	return newDomainError(CategoryPermission, message, cause, captureCallSite(2), opts...)
}

func NewResourceError(message string, cause error, opts ...ErrorOption) *DomainError {
	return newDomainError(CategoryResource, message, cause, captureCallSite(2), opts...)
}

func NewDomainErrorWithCategory(category ErrorCategory, message string, cause error, opts ...ErrorOption) *DomainError {
	return newDomainError(category, message, cause, captureCallSite(2), opts...)
}

func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

func GetErrorCategory(err error) ErrorCategory {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Category
	}
	return CategoryInternal
}

func GetErrorSeverity(err error) ErrorSeverity {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Severity
	}
	return SeverityError
}

// IsRetryableError reports whether a retry has a chance of succeeding.
// Plain errors fall back to a message heuristic.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Retryable
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"validation", "invalid", "not found", "permission"} {
		if strings.Contains(msg, marker) {
			return false
		}
	}
	for _, marker := range []string{"timeout", "connection", "unavailable", "temporary", "try again"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func IsUserFacingError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.UserFacing
	}
	return false
}

func GetErrorContext(err error) *ErrorContext {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Context
	}
	return nil
}

var (
	ErrAlreadyStarted = errors.New("adapter already started")
	ErrNotStarted     = errors.New("adapter not started")
	ErrNotFound       = errors.New("resource not found")
	ErrTimeout        = errors.New("operation timeout")
	ErrInvalidInput   = errors.New("invalid input")
	ErrRunCancelled   = errors.New("run cancelled")
)

// NotFoundError identifies a missing resource by kind and id while still
// matching errors.Is(err, ErrNotFound).
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func IsAlreadyStarted(err error) bool {
	return errors.Is(err, ErrAlreadyStarted)
}

func IsNotStarted(err error) bool {
	return errors.Is(err, ErrNotStarted)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
