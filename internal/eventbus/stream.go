// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StreamManager handles JetStream stream lifecycle for the interactions
// stream.
type StreamManager struct {
	js jetstream.JetStream

	name            string
	subjectPrefix   string
	maxAge          time.Duration
	duplicateWindow time.Duration
}

// NewStreamManager creates a stream manager over an established connection.
func NewStreamManager(nc *nats.Conn, name, subjectPrefix string, maxAge, duplicateWindow time.Duration) (*StreamManager, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &StreamManager{
		js:              js,
		name:            name,
		subjectPrefix:   subjectPrefix,
		maxAge:          maxAge,
		duplicateWindow: duplicateWindow,
	}, nil
}

// EnsureStream creates or updates the interactions stream. Subjects follow
// the hierarchy <prefix>.<creator_id>.<action_type>.
func (m *StreamManager) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:        m.name,
		Subjects:    []string{m.subjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      m.maxAge,
		Duplicates:  m.duplicateWindow,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		AllowDirect: true,
	}

	if _, err := m.js.Stream(ctx, m.name); err == nil {
		stream, err := m.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to update stream: %w", err)
		}
		return stream, nil
	}

	stream, err := m.js.CreateStream(ctx, streamCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}
	return stream, nil
}

// Info returns current stream state.
func (m *StreamManager) Info(ctx context.Context) (*jetstream.StreamInfo, error) {
	stream, err := m.js.Stream(ctx, m.name)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream: %w", err)
	}
	return stream.Info(ctx)
}
