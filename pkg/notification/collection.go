// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package notification

import (
	"github.com/AMD-AGI/Primus-Deploy/pkg/logger/log"
)

// Collection fans an event out to an ordered list of sinks. A sink failure is
// logged and isolated: it never fails the dispatch nor the other sinks.
type Collection struct {
	notifiers []Notifier
}

// NewCollection builds the fan-out from the given sinks.
func NewCollection(notifiers ...Notifier) *Collection {
	return &Collection{notifiers: notifiers}
}

// Dispatch sends the event to every sink in order.
func (c *Collection) Dispatch(event *Event) {
	for _, notifier := range c.notifiers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("panic when dispatching event %s: %v", event.Type, r)
				}
			}()
			notifier.Dispatch(event)
		}()
	}
}
