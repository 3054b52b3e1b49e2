package errorx

import (
	"fmt"
)

// GENERAL ERROR:

// GeneralError - General App Error.
type GeneralError struct {
	message string
	err     error
}

// NewGeneralError - GeneralError constructor.
func NewGeneralError(msg string, args ...any) *GeneralError {
	return &GeneralError{message: fmt.Sprintf(msg, args...), err: nil}
}

// NewGeneralErrorWrapper - GeneralError constructor for wrapper of another error.
func NewGeneralErrorWrapper(err error, msg string, args ...any) *GeneralError {
	return &GeneralError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (ge *GeneralError) Error() string {
	if ge.err != nil {
		return fmt.Errorf("%s # Error wrap: %w", ge.message, ge.err).Error()
	}

	return ge.message
}

// Unwrap - return the wrapped error, if any.
func (ge *GeneralError) Unwrap() error {
	return ge.err
}

// DATABASE ERROR

// DatabaseError - generic database execution error.
type DatabaseError struct {
	message string
	err     error
}

// NewDatabaseError - DatabaseError constructor.
func NewDatabaseError(msg string, args ...any) *DatabaseError {
	return &DatabaseError{message: fmt.Sprintf(msg, args...), err: nil}
}

// NewDatabaseErrorWrapper - DatabaseError constructor for wrapper of another error.
func NewDatabaseErrorWrapper(err error, msg string, args ...any) *DatabaseError {
	return &DatabaseError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (ge *DatabaseError) Error() string {
	if ge.err != nil {
		return fmt.Errorf("%s: %w", ge.message, ge.err).Error()
	}

	return ge.message
}

// Unwrap - return the wrapped error, if any.
func (ge *DatabaseError) Unwrap() error {
	return ge.err
}

// CONFIGURATION ERROR

// ConfigurationError - invalid transaction or conversion configuration,
// for example an isolation level that conflicts with the transaction being joined.
type ConfigurationError struct {
	message string
	err     error
}

// NewConfigurationError - ConfigurationError constructor.
func NewConfigurationError(msg string, args ...any) *ConfigurationError {
	return &ConfigurationError{message: fmt.Sprintf(msg, args...)}
}

// NewConfigurationErrorWrapper - ConfigurationError constructor wrapping an underlying error.
func NewConfigurationErrorWrapper(err error, msg string, args ...any) *ConfigurationError {
	return &ConfigurationError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (ce *ConfigurationError) Error() string {
	if ce.err != nil {
		return fmt.Errorf("%s: %w", ce.message, ce.err).Error()
	}

	return ce.message
}

// Unwrap - return the wrapped error, if any.
func (ce *ConfigurationError) Unwrap() error {
	return ce.err
}

// TRANSACTION ERRORS

// NoActiveTransactionError - an operation required an active transaction but none was found.
type NoActiveTransactionError struct {
	message string
}

// NewNoActiveTransactionError - NoActiveTransactionError constructor.
func NewNoActiveTransactionError(msg string, args ...any) *NoActiveTransactionError {
	return &NoActiveTransactionError{message: fmt.Sprintf(msg, args...)}
}

// Error - return the error string.
func (te *NoActiveTransactionError) Error() string {
	return te.message
}

// TransactionAlreadyActiveError - an operation forbids an active transaction but one was found.
type TransactionAlreadyActiveError struct {
	message string
}

// NewTransactionAlreadyActiveError - TransactionAlreadyActiveError constructor.
func NewTransactionAlreadyActiveError(msg string, args ...any) *TransactionAlreadyActiveError {
	return &TransactionAlreadyActiveError{message: fmt.Sprintf(msg, args...)}
}

// Error - return the error string.
func (te *TransactionAlreadyActiveError) Error() string {
	return te.message
}

// TransactionSerializationError - the database reported a serialization or deadlock
// conflict. Distinguished from DatabaseError so that callers can retry the transaction.
type TransactionSerializationError struct {
	message string
	err     error
}

// NewTransactionSerializationErrorWrapper - TransactionSerializationError constructor
// for wrapper of the driver-reported conflict.
func NewTransactionSerializationErrorWrapper(err error, msg string, args ...any) *TransactionSerializationError {
	return &TransactionSerializationError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (te *TransactionSerializationError) Error() string {
	if te.err != nil {
		return fmt.Errorf("%s: %w", te.message, te.err).Error()
	}

	return te.message
}

// Unwrap - return the wrapped error, if any.
func (te *TransactionSerializationError) Unwrap() error {
	return te.err
}

// CONVERSION / INSTANTIATION ERRORS

// ConversionError - no converter exists between a database value and the requested
// target type, or a checked narrowing overflowed.
type ConversionError struct {
	message string
	err     error
}

// NewConversionError - ConversionError constructor.
func NewConversionError(msg string, args ...any) *ConversionError {
	return &ConversionError{message: fmt.Sprintf(msg, args...)}
}

// NewConversionErrorWrapper - ConversionError constructor for wrapper of another error.
func NewConversionErrorWrapper(err error, msg string, args ...any) *ConversionError {
	return &ConversionError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (ce *ConversionError) Error() string {
	if ce.err != nil {
		return fmt.Errorf("%s: %w", ce.message, ce.err).Error()
	}

	return ce.message
}

// Unwrap - return the wrapped error, if any.
func (ce *ConversionError) Unwrap() error {
	return ce.err
}

// InstantiationError - no viable binding between a result row and the requested
// target type, or a null column was bound to a non-nullable target.
type InstantiationError struct {
	message string
	err     error
}

// NewInstantiationError - InstantiationError constructor.
func NewInstantiationError(msg string, args ...any) *InstantiationError {
	return &InstantiationError{message: fmt.Sprintf(msg, args...)}
}

// NewInstantiationErrorWrapper - InstantiationError constructor for wrapper of another error.
func NewInstantiationErrorWrapper(err error, msg string, args ...any) *InstantiationError {
	return &InstantiationError{message: fmt.Sprintf(msg, args...), err: err}
}

// Error - return the error string.
func (ie *InstantiationError) Error() string {
	if ie.err != nil {
		return fmt.Errorf("%s: %w", ie.message, ie.err).Error()
	}

	return ie.message
}

// Unwrap - return the wrapped error, if any.
func (ie *InstantiationError) Unwrap() error {
	return ie.err
}

// AmbiguousBindingError - more than one equally ranked binding matched a result row.
type AmbiguousBindingError struct {
	message string
}

// NewAmbiguousBindingError - AmbiguousBindingError constructor.
func NewAmbiguousBindingError(msg string, args ...any) *AmbiguousBindingError {
	return &AmbiguousBindingError{message: fmt.Sprintf(msg, args...)}
}

// Error - return the error string.
func (ae *AmbiguousBindingError) Error() string {
	return ae.message
}

// RESULT CARDINALITY ERRORS

// EmptyResultError - a unique result was requested but the query returned no rows.
type EmptyResultError struct {
	message string
}

// NewEmptyResultError - EmptyResultError constructor.
func NewEmptyResultError(msg string, args ...any) *EmptyResultError {
	return &EmptyResultError{message: fmt.Sprintf(msg, args...)}
}

// Error - return the error string.
func (ee *EmptyResultError) Error() string {
	return ee.message
}

// NonUniqueResultError - a unique or optional result was requested but the query
// returned more than one row.
type NonUniqueResultError struct {
	message string
}

// NewNonUniqueResultError - NonUniqueResultError constructor.
func NewNonUniqueResultError(msg string, args ...any) *NonUniqueResultError {
	return &NonUniqueResultError{message: fmt.Sprintf(msg, args...)}
}

// Error - return the error string.
func (ne *NonUniqueResultError) Error() string {
	return ne.message
}
