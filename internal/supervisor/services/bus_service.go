// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

package services

import (
	"context"
	"time"

	"github.com/fanbeam/fanbeam/internal/logging"
)

// EventBusRunner matches the event bus lifecycle the watchdog needs.
//
// Satisfied by *eventbus.Bus.
type EventBusRunner interface {
	Healthy() bool
	Close(ctx context.Context) error
}

// EventBusService supervises an already-connected event bus. The NATS client
// reconnects on its own, so the service acts as a watchdog: it checks health
// periodically, logs degradation, and closes the bus on shutdown.
type EventBusService struct {
	bus             EventBusRunner
	checkInterval   time.Duration
	shutdownTimeout time.Duration
	name            string
}

// NewEventBusService creates an event bus service wrapper.
func NewEventBusService(bus EventBusRunner, shutdownTimeout time.Duration) *EventBusService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &EventBusService{
		bus:             bus,
		checkInterval:   30 * time.Second,
		shutdownTimeout: shutdownTimeout,
		name:            "event-bus",
	}
}

// Serve implements suture.Service. Blocks until the context is canceled,
// then closes the bus with the configured timeout.
func (s *EventBusService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !s.bus.Healthy() {
				logging.Warn().
					Str("service", s.name).
					Msg("Event bus connection degraded, awaiting reconnect")
			}

		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()

			if err := s.bus.Close(shutdownCtx); err != nil {
				logging.Error().
					Err(err).
					Str("service", s.name).
					Msg("Event bus close failed")
			}
			return ctx.Err()
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *EventBusService) String() string {
	return s.name
}
