// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

package eventbus

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/fanbeam/fanbeam/internal/logging"
)

// watermillLogger adapts the application logger to watermill.LoggerAdapter.
type watermillLogger struct {
	fields watermill.LogFields
}

// NewWatermillLogger returns a watermill adapter backed by the application
// logger.
func NewWatermillLogger() watermill.LoggerAdapter {
	return &watermillLogger{}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	event := logging.Error().Err(err)
	addFields(event, l.fields, fields)
	event.Msg(msg)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	event := logging.Info()
	addFields(event, l.fields, fields)
	event.Msg(msg)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	event := logging.Debug()
	addFields(event, l.fields, fields)
	event.Msg(msg)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	event := logging.Trace()
	addFields(event, l.fields, fields)
	event.Msg(msg)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{fields: l.fields.Add(fields)}
}

func addFields(event *zerolog.Event, sets ...watermill.LogFields) {
	for _, set := range sets {
		for k, v := range set {
			event.Interface(k, v)
		}
	}
}
