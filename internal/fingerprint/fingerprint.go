// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

// Package fingerprint derives stable pseudonymous identity keys for
// otherwise-anonymous visitors.
//
// The fingerprint is the idempotency key for identity resolution within a
// creator's audience: repeated visits with the same network signals resolve to
// the same audience member. It is a cheap signal-based deduplication key for
// engagement analytics, NOT a security-grade identity; no collision resistance
// against adversarial spoofing is claimed or needed.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// separator keeps ("ab","c") and ("a","bc") from colliding.
const separator = "\x1f"

// Resolve derives a deterministic fingerprint from the available request
// signals. All inputs are optional; missing signals degrade fingerprint
// quality but never fail. The function is total and pure: the same set of
// signals always produces the identical 64-character hex string, regardless
// of the order they are supplied in.
func Resolve(signals ...string) string {
	parts := make([]string, 0, len(signals))
	for _, s := range signals {
		if s != "" {
			parts = append(parts, s)
		}
	}
	sort.Strings(parts)

	sum := sha256.Sum256([]byte(strings.Join(parts, separator)))
	return hex.EncodeToString(sum[:])
}
