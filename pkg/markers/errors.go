// markerd
// Copyright (c) 2026 The markerd Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of markerd.
//
// markerd is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// markerd is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with markerd.  If not, see <http://www.gnu.org/licenses/>.

package markers

import (
	"errors"
	"fmt"
)

// Kind is the stable error taxonomy exposed to API consumers. Storage errors
// surface as KindInternal; everything else is a deliberate refusal.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindBadTarget
	KindNotFound
	KindOverlap
	KindConflict
	KindOverflow
	KindFeatureDisabled
	KindUnavailable
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad request"
	case KindBadTarget:
		return "bad target"
	case KindNotFound:
		return "not found"
	case KindOverlap:
		return "overlap"
	case KindConflict:
		return "conflict"
	case KindOverflow:
		return "overflow"
	case KindFeatureDisabled:
		return "feature disabled"
	case KindUnavailable:
		return "unavailable"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a classified engine error. Err, when set, is the underlying cause.
type Error struct {
	Err  error
	Msg  string
	Kind Kind
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message is the human-readable part without the kind prefix.
func (e *Error) Message() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Err)
	}
	return e.Msg
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func errBadRequestf(format string, args ...any) *Error {
	return newError(KindBadRequest, format, args...)
}

func errBadTargetf(format string, args ...any) *Error {
	return newError(KindBadTarget, format, args...)
}

func errNotFoundf(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func errOverlapf(format string, args ...any) *Error {
	return newError(KindOverlap, format, args...)
}

func errFeatureDisabled(feature string) *Error {
	return newError(KindFeatureDisabled, "%s is disabled in the current configuration", feature)
}

func errUnavailable() *Error {
	return newError(KindUnavailable, "service is suspended")
}

// errInternal wraps a storage or invariant failure.
func errInternal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf classifies any error into the taxonomy. Unclassified errors are
// treated as internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
