// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package moerr

import (
	"context"
	"errors"
	"fmt"
)

const (
	// 0 - 99 is OK.
	Ok uint16 = 0

	// Group 1: Internal errors
	ErrStart    uint16 = 20100
	ErrInternal uint16 = 20101

	// Group 3: invalid input
	ErrBadConfig    uint16 = 20300
	ErrInvalidInput uint16 = 20301

	// Group 4: unexpected state
	ErrInvalidState uint16 = 20400
	ErrNoSuchSpace  uint16 = 20403

	// Group 5: cluster topology
	// ErrDiscovery the router topology can not be resolved from the bootstrap node
	ErrDiscovery uint16 = 20510
	// ErrConnect can not connect to the discovered routers
	ErrConnect uint16 = 20511

	// Group 6: write path
	// ErrSchemaMismatch external columns do not match the space shape
	ErrSchemaMismatch uint16 = 20620
	// ErrWriteRejected the write was never dispatched
	ErrWriteRejected uint16 = 20621
	// ErrWriteFailed a dispatched write completed with an error
	ErrWriteFailed uint16 = 20622
	// ErrDrainFailed some dispatched writes failed before close
	ErrDrainFailed uint16 = 20623

	// Group 9: data conversion
	ErrUnsupportedDataType uint16 = 20905

	// ErrEnd, the max value of MOErrorCode
	ErrEnd uint16 = 65535
)

type moErrorMsgItem struct {
	errorMsgOrFormat string
}

var errorMsgRefer = map[uint16]moErrorMsgItem{
	// Group 1: Internal errors
	ErrStart:    {"internal error: error code start"},
	ErrInternal: {"internal error: %s"},

	// Group 3: invalid input
	ErrBadConfig:    {"invalid configuration: %s"},
	ErrInvalidInput: {"invalid input: %s"},

	// Group 4: unexpected state
	ErrInvalidState: {"invalid state %s"},
	ErrNoSuchSpace:  {"no such space %s"},

	// Group 5: cluster topology
	ErrDiscovery: {"exception during discovery: %s"},
	ErrConnect:   {"can not connect to routers: %s"},

	// Group 6: write path
	ErrSchemaMismatch: {"schema mismatch: %s"},
	ErrWriteRejected:  {"write rejected"},
	ErrWriteFailed:    {"write failed"},
	ErrDrainFailed:    {"some of the tasks completed exceptionally, failed: %d"},

	// Group 9: data conversion
	ErrUnsupportedDataType: {"data type not supported: %s"},

	// Group End: max value of MOErrorCode
	ErrEnd: {"internal error: end of errcode code"},
}

func newError(ctx context.Context, code uint16, args ...any) *Error {
	item, has := errorMsgRefer[code]
	if !has {
		panic(NewInternalError(ctx, "not exist MOErrorCode: %d", code))
	}
	err := &Error{code: code, message: item.errorMsgOrFormat}
	if len(args) > 0 {
		err.message = fmt.Sprintf(item.errorMsgOrFormat, args...)
	}
	return err
}

// Error is the coded error returned by every component of the connector.
type Error struct {
	code    uint16
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.message
	}
	return e.message + ": " + e.cause.Error()
}

// Unwrap returns the cause, so errors.Is and errors.As see through.
func (e *Error) Unwrap() error {
	return e.cause
}

// ErrorCode returns the error code
func (e *Error) ErrorCode() uint16 {
	return e.code
}

// Message returns the message without the cause
func (e *Error) Message() string {
	return e.message
}

func (e *Error) withCause(cause error) *Error {
	e.cause = cause
	return e
}

// IsMoErrCode reports whether any error in err's chain has the code rc.
func IsMoErrCode(e error, rc uint16) bool {
	if e == nil {
		return rc == Ok
	}
	var me *Error
	for e != nil {
		if !errors.As(e, &me) {
			return false
		}
		if me.code == rc {
			return true
		}
		e = me.cause
	}
	return false
}

// Code returns the code of the outermost *Error in err's chain, Ok for nil
// and ErrInternal for foreign errors.
func Code(e error) uint16 {
	if e == nil {
		return Ok
	}
	var me *Error
	if errors.As(e, &me) {
		return me.code
	}
	return ErrInternal
}

func NewInternalError(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInternal, xmsg)
}

func NewBadConfig(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrBadConfig, xmsg)
}

func NewInvalidInput(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInvalidInput, xmsg)
}

func NewInvalidState(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInvalidState, xmsg)
}

func NewNoSuchSpace(ctx context.Context, space string) *Error {
	return newError(ctx, ErrNoSuchSpace, space)
}

// NewDiscovery wraps cause (may be nil) as a discovery error.
func NewDiscovery(ctx context.Context, cause error, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrDiscovery, xmsg).withCause(cause)
}

func NewConnect(ctx context.Context, cause error, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrConnect, xmsg).withCause(cause)
}

func NewSchemaMismatch(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrSchemaMismatch, xmsg)
}

func NewWriteRejected(ctx context.Context, cause error, space string) *Error {
	return newWriteError(ctx, ErrWriteRejected, cause, space)
}

func NewWriteFailed(ctx context.Context, cause error, space string) *Error {
	return newWriteError(ctx, ErrWriteFailed, cause, space)
}

// newWriteError names space in the message when it is known.
func newWriteError(ctx context.Context, code uint16, cause error, space string) *Error {
	err := newError(ctx, code)
	if space != "" {
		err.message += " on space " + space
	}
	return err.withCause(cause)
}

// NewDrainFailed carries the failed write count and the first captured cause.
func NewDrainFailed(ctx context.Context, failed uint64, first error) *Error {
	return newError(ctx, ErrDrainFailed, failed).withCause(first)
}

func NewUnsupportedDataType(ctx context.Context, typ string) *Error {
	return newError(ctx, ErrUnsupportedDataType, typ)
}
