// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

package database

import "errors"

var (
	// ErrCreatorNotFound is returned when a referenced creator does not exist.
	ErrCreatorNotFound = errors.New("creator not found")

	// ErrCreatorHandleTaken is returned when creating a creator with a
	// handle that is already registered.
	ErrCreatorHandleTaken = errors.New("creator handle already taken")

	// ErrMemberNotFound is returned when an audience member lookup by
	// explicit ID finds no row.
	ErrMemberNotFound = errors.New("audience member not found")

	// ErrMemberResolution is returned when the insert-or-skip-then-reread
	// sequence fails to produce a row. This indicates a datastore
	// inconsistency; the operation is safe to retry.
	ErrMemberResolution = errors.New("unable to resolve audience member")
)
