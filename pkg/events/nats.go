package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// NATSSink mirrors suite events to a NATS subject tree so out-of-process
// observers (dashboards, collectors) can follow a suite without sharing
// memory with the harness.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

// NewNATSSink connects to url and publishes under subjectPrefix
// (e.g. "wordbench.events"). Events land on <prefix>.<type>.<model>.
func NewNATSSink(url, subjectPrefix string) (*NATSSink, error) {
	conn, err := nats.Connect(url, nats.Name("wordbench"))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	if subjectPrefix == "" {
		subjectPrefix = "wordbench.events"
	}
	return &NATSSink{conn: conn, subject: subjectPrefix}, nil
}

// Publish implements Sink. Failures are ignored: the mirror is best-effort
// observability and must never affect run control flow.
func (s *NATSSink) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	subject := fmt.Sprintf("%s.%s.%s", s.subject, event.Type, sanitizeToken(event.Model))
	_ = s.conn.Publish(subject, data)
}

// Close flushes and closes the connection.
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Flush(); err != nil {
		s.conn.Close()
		return err
	}
	s.conn.Close()
	return nil
}

// sanitizeToken makes a model id usable as a NATS subject token.
func sanitizeToken(s string) string {
	if s == "" {
		return "unknown"
	}
	replacer := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_", "/", "_")
	return replacer.Replace(s)
}
