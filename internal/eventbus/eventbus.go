// Package eventbus wraps a NATS connection as the external event log sink
// (SPEC_FULL.md §4.7): contracts are published here as a black-box,
// session-keyed provenance log. Publish failures are logged and
// non-fatal — the dispatcher does not require NATS to be healthy.
package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	nc "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// SubjectContract is the subject pattern a session's contract events are
// published to, generalized from the teacher's "agent.%s.status" scheme.
const SubjectContract = "event.%s.contract"

// Bus wraps a NATS connection used purely as a fire-and-forget sink.
type Bus struct {
	conn *nc.Conn
}

// Connect dials an existing NATS server. clientID names this process in
// NATS connection metadata, mirroring the teacher's NewClient convention.
func Connect(url, clientID string) (*Bus, error) {
	opts := []nc.Option{
		nc.Name(clientID),
		nc.ReconnectWait(2 * time.Second),
		nc.MaxReconnects(-1),
		nc.DisconnectErrHandler(func(_ *nc.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Str("component", "eventbus").Msg("disconnected")
			}
		}),
		nc.ReconnectHandler(func(c *nc.Conn) {
			log.Info().Str("component", "eventbus").Str("url", c.ConnectedUrl()).Msg("reconnected")
		}),
	}

	conn, err := nc.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Bus{conn: conn}, nil
}

// EmbeddedServer starts an in-process NATS server, grounded on the
// teacher's main.go embedded-server option, for single-binary deployments
// that don't want an external event-log process.
func EmbeddedServer(host string, port int) (*natsserver.Server, error) {
	opts := &natsserver.Options{Host: host, Port: port, NoLog: true, NoSigs: true}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("start embedded NATS server: %w", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		return nil, fmt.Errorf("embedded NATS server did not become ready")
	}
	return srv, nil
}

// PublishContractEvent publishes a contract as the JSON body of an event
// on SubjectContract for the owning session. Never returns an error to a
// caller expecting the dispatcher to proceed regardless — failures are
// logged here and swallowed, per §4.7's "non-fatal" requirement.
func (b *Bus) PublishContractEvent(sessionID string, contract any) {
	if b == nil || b.conn == nil {
		return
	}

	data, err := json.Marshal(contract)
	if err != nil {
		log.Error().Err(err).Str("component", "eventbus").Msg("marshal contract event")
		return
	}

	subject := fmt.Sprintf(SubjectContract, sessionID)
	if err := b.conn.Publish(subject, data); err != nil {
		log.Warn().Err(err).Str("component", "eventbus").Str("subject", subject).Msg("publish failed")
	}
}

// Close closes the underlying connection. Safe on a nil Bus.
func (b *Bus) Close() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}
