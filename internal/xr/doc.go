// Package xr implements a trackable-lifecycle reconciliation engine for
// polled tracking providers.
//
// A provider (anchors, planes, detected images) reports a delta of
// added/updated/removed trackables once per frame. The Manager owns the
// identifier-keyed set of live trackables, applies the delta, notifies an
// observer, and guarantees that removed trackables are destroyed only after
// the notification returns. Trackables may also be created locally ahead of
// provider confirmation ("pending") and reconciled when the provider first
// reports their identifier.
//
// The engine is single-writer: all Manager mutations must happen on one
// goroutine, typically the frame loop that calls Poll.
package xr
