// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

// Package notify posts sync run outcomes to Slack. Delivery is best effort:
// failures are logged and counted, never returned to the caller.
package notify

import (
	"context"
	"unicode/utf8"
)

// Field is one labelled value in a notification, rendered in order.
type Field struct {
	Label string
	Value string
}

// Notifier sends a run outcome. Implementations must not block the caller
// beyond their own request timeout and must not panic.
type Notifier interface {
	Notify(ctx context.Context, title string, success bool, details []Field, errMsg string)
}

// Nop discards notifications. It is used when no webhook is configured.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, string, bool, []Field, string) {}

// MaxErrorLength is the longest error message included in a notification.
const MaxErrorLength = 500

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
