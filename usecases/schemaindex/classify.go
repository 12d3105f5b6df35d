//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 VertexDB. All rights reserved.
//

package schemaindex

import stderrors "errors"

// ErrUnprocessable, ErrNotFound, ErrContextExpired and ErrInternal are
// narrow classification wrappers Classify returns, so an API-facing
// layer can pick a response category without knowing about every
// concrete error type this package defines.

type ErrUnprocessable struct {
	err error
}

func (e ErrUnprocessable) Error() string { return e.err.Error() }

func newErrUnprocessable(err error) ErrUnprocessable { return ErrUnprocessable{err} }

type ErrNotFound struct {
	err error
}

func (e ErrNotFound) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func newErrNotFound(err error) ErrNotFound { return ErrNotFound{err} }

type ErrContextExpired struct {
	err error
}

func (e ErrContextExpired) Error() string { return e.err.Error() }

func newErrContextExpired(err error) ErrContextExpired { return ErrContextExpired{err} }

type ErrInternal struct {
	err error
}

func (e ErrInternal) Error() string { return e.err.Error() }

func newErrInternal(err error) ErrInternal { return ErrInternal{err} }

// Classify maps a domain error returned by Manager into the response
// category an API-facing layer needs, without that layer having to know
// about every concrete error type this package defines.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var notFound *NoSuchIndexError
	if stderrors.As(err, &notFound) {
		return newErrNotFound(err)
	}

	var alreadyConstrained *AlreadyConstrainedError
	if stderrors.As(err, &alreadyConstrained) {
		return newErrUnprocessable(err)
	}
	if stderrors.Is(err, ErrAlreadyIndexed) || stderrors.Is(err, ErrConstraintIndexDropRejected) {
		return newErrUnprocessable(err)
	}

	var conflictErr *IndexEntryConflictError
	if stderrors.As(err, &conflictErr) {
		return newErrUnprocessable(err)
	}

	if stderrors.Is(err, ErrIndexProxyAlreadyClosed) {
		return newErrContextExpired(err)
	}

	return newErrInternal(err)
}
