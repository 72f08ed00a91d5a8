// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/fanbeam/fanbeam/internal/config"
	"github.com/fanbeam/fanbeam/internal/logging"
	"github.com/fanbeam/fanbeam/internal/models"
)

// Bus owns the event publishing pipeline: optionally an embedded NATS
// server, the JetStream stream, and the resilient publisher.
type Bus struct {
	cfg      *config.EventBusConfig
	embedded *EmbeddedServer
	nc       *natsgo.Conn
	pub      *Publisher
}

// New builds the event bus from configuration. With EmbeddedServer set it
// starts an in-process NATS server first; otherwise it connects to the
// configured URL.
func New(cfg *config.EventBusConfig) (*Bus, error) {
	bus := &Bus{cfg: cfg}

	url := cfg.URL
	if cfg.EmbeddedServer {
		embedded, err := NewEmbeddedServer(cfg.Port, cfg.StoreDir)
		if err != nil {
			return nil, fmt.Errorf("failed to start embedded NATS server: %w", err)
		}
		bus.embedded = embedded
		url = embedded.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	nc, err := natsgo.Connect(url,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
	)
	if err != nil {
		bus.shutdownEmbedded()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	bus.nc = nc

	streams, err := NewStreamManager(nc, cfg.StreamName, cfg.SubjectPrefix, cfg.MaxAge, cfg.DuplicateWindow)
	if err != nil {
		bus.closePartial()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := streams.EnsureStream(ctx); err != nil {
		bus.closePartial()
		return nil, fmt.Errorf("failed to ensure interactions stream: %w", err)
	}

	pub, err := NewPublisher(url, cfg, NewWatermillLogger())
	if err != nil {
		bus.closePartial()
		return nil, err
	}
	bus.pub = pub

	return bus, nil
}

// PublishInteraction fans out one committed interaction. Errors are returned
// for observability but callers must not fail the request on them: the
// interaction is already durable in the database.
func (b *Bus) PublishInteraction(ctx context.Context, event *models.InteractionEvent, member *models.AudienceMember) error {
	wire := NewInteractionMessage(event, member)

	data, err := Serialize(wire)
	if err != nil {
		return err
	}

	msg := message.NewMessage(event.ID.String(), data)
	msg.Metadata.Set("creator_id", event.CreatorID.String())
	msg.Metadata.Set("action_type", string(event.ActionType))

	return b.pub.Publish(ctx, wire.Subject(b.cfg.SubjectPrefix), msg)
}

// Healthy reports whether the bus can currently reach its broker.
func (b *Bus) Healthy() bool {
	if b.embedded != nil && !b.embedded.IsRunning() {
		return false
	}
	return b.nc != nil && b.nc.IsConnected()
}

// Close shuts the pipeline down in reverse order of startup.
func (b *Bus) Close(ctx context.Context) error {
	var firstErr error

	if b.pub != nil {
		if err := b.pub.Close(); err != nil {
			firstErr = err
		}
	}
	if b.nc != nil {
		b.nc.Close()
	}
	if b.embedded != nil {
		if err := b.embedded.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (b *Bus) closePartial() {
	if b.nc != nil {
		b.nc.Close()
	}
	b.shutdownEmbedded()
}

func (b *Bus) shutdownEmbedded() {
	if b.embedded == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.embedded.Shutdown(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to shut down embedded NATS server")
	}
}
