/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package command

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_signage/internal/telemetry"
)

// subjectPrefix scopes relay traffic; the player id is the final token.
const subjectPrefix = "heimdall.cmd."

// relayMessage is a command on the wire, tagged with its origin node so an
// instance can ignore its own publishes coming back around.
type relayMessage struct {
	NodeID  string  `json:"node_id"`
	Command Command `json:"command"`
}

// Relay mirrors play commands between server instances over NATS so a
// display attached to any instance converges on the same current command.
// Fire-and-forget pub/sub with no persistence: the channel's contract is a
// single volatile latest command, and the relay keeps exactly that.
type Relay struct {
	hub    *Hub
	conn   *nats.Conn
	sub    *nats.Subscription
	nodeID string
	logger zerolog.Logger
}

// NewRelay connects to NATS and wires the hub's forwarder. The relay owns
// the connection; Close releases it.
func NewRelay(url string, hub *Hub, logger zerolog.Logger) (*Relay, error) {
	r := &Relay{
		hub:    hub,
		nodeID: uuid.NewString(),
		logger: logger.With().Str("component", "command_relay").Logger(),
	}

	conn, err := nats.Connect(url,
		nats.Name("heimdall-signage"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			r.logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			r.logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	r.conn = conn

	sub, err := conn.Subscribe(subjectPrefix+">", r.handleMessage)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe nats: %w", err)
	}
	r.sub = sub

	hub.SetForwarder(r.forward)

	r.logger.Info().Str("url", url).Str("node_id", r.nodeID).Msg("command relay started")
	return r, nil
}

// forward mirrors a locally published command to the other instances.
func (r *Relay) forward(cmd Command) {
	msg := relayMessage{NodeID: r.nodeID, Command: cmd}
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error().Err(err).Msg("marshal relay message")
		return
	}
	if err := r.conn.Publish(subjectPrefix+cmd.PlayerID, data); err != nil {
		r.logger.Warn().Err(err).Str("player_id", cmd.PlayerID).Msg("relay publish failed")
		return
	}
	telemetry.RelayMessages.WithLabelValues("out").Inc()
}

// handleMessage injects foreign-origin commands into the local hub.
func (r *Relay) handleMessage(m *nats.Msg) {
	var msg relayMessage
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		r.logger.Warn().Err(err).Str("subject", m.Subject).Msg("bad relay message")
		return
	}
	if msg.NodeID == r.nodeID {
		return
	}
	if !strings.HasPrefix(m.Subject, subjectPrefix) {
		return
	}

	telemetry.RelayMessages.WithLabelValues("in").Inc()
	r.logger.Debug().
		Str("player_id", msg.Command.PlayerID).
		Str("origin", msg.NodeID).
		Uint64("seq", msg.Command.Seq).
		Msg("injecting relayed command")
	r.hub.Inject(msg.Command)
}

// Close detaches the forwarder and releases the NATS connection.
func (r *Relay) Close() error {
	r.hub.SetForwarder(nil)
	if r.sub != nil {
		if err := r.sub.Unsubscribe(); err != nil {
			r.logger.Debug().Err(err).Msg("unsubscribe failed")
		}
	}
	if r.conn != nil {
		r.conn.Close()
	}
	return nil
}
