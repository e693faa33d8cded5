// Copyright 2018-2026 Gaia Hub Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Nats publishes tasks as JSON messages on a NATS subject.
type Nats struct {
	conn    *nats.Conn
	subject string
}

// NewNats returns a publisher with a resilient connection to the NATS
// server at address.
func NewNats(address, token, subject string, log *zerolog.Logger) (*Nats, error) {
	nc, err := nats.Connect(
		address,
		nats.DrainTimeout(9*time.Second), // daemon shutdown waits 10 seconds
		nats.MaxReconnects(-1),
		nats.Token(token),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("nats error")
		}),
		nats.ClosedHandler(func(c *nats.Conn) {
			if c.LastError() != nil {
				log.Error().Err(c.LastError()).Msg("connection to nats server closed")
			} else {
				log.Debug().Msg("connection to nats server closed")
			}
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Error().Err(err).Msg("connection to nats server disconnected")
			}
		}),
		nats.CustomReconnectDelay(func(attempts int) time.Duration {
			if attempts%3 == 0 {
				log.Info().Msg("connection to nats server failed 3 times, backing off")
				return 5 * time.Minute
			}
			return 2 * time.Second
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("connection to nats server reconnected")
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connection to nats server at '%s' failed", address)
	}
	return &Nats{conn: nc, subject: subject}, nil
}

// Enqueue implements the Publisher interface.
func (p *Nats) Enqueue(_ context.Context, task Task) error {
	b, err := json.Marshal(task)
	if err != nil {
		return errors.Wrap(err, "queue: encoding task")
	}
	if err := p.conn.Publish(p.subject, b); err != nil {
		return errors.Wrap(err, "queue: publishing task")
	}
	return nil
}

// Close drains the connection.
func (p *Nats) Close() error {
	return p.conn.Drain()
}
