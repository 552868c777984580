package dispatch

import (
	"log"

	"github.com/securemessenger/relay/registry"
	"github.com/securemessenger/relay/shared"
)

// Dispatcher routes inbound envelopes to their recipients: everyone
// for a broadcast, one named user for a direct message.
type Dispatcher struct {
	registry *registry.Registry
}

func New(reg *registry.Registry) *Dispatcher {
	return &Dispatcher{registry: reg}
}

// Dispatch handles one decoded envelope from src. Unknown envelope
// types are dropped without an error.
func (d *Dispatcher) Dispatch(env shared.Envelope, src *shared.Client) {
	switch env.Type {
	case shared.TypeUsername:
		d.handleUsername(env, src)
	case shared.TypeMessage:
		d.handleMessage(env, src)
	default:
		log.Printf("Ignoring envelope with unknown type %q from %s", env.Type, src.Addr)
	}
}

func (d *Dispatcher) handleUsername(env shared.Envelope, src *shared.Client) {
	username := env.Content
	d.registry.SetUsername(src, username)
	log.Printf("User %q connected from %s", username, src.Addr)

	d.Broadcast(shared.Envelope{
		Type:      shared.TypeUserJoined,
		Content:   username + " joined the chat",
		Sender:    username,
		Timestamp: shared.NowMillis(),
	})
}

func (d *Dispatcher) handleMessage(env shared.Envelope, src *shared.Client) {
	sender, ok := d.registry.Username(src)
	if !ok {
		sender = shared.UnknownSender
	}

	timestamp := env.Timestamp
	if timestamp == 0 {
		timestamp = shared.NowMillis()
	}

	out := shared.Envelope{
		Type:      shared.TypeMessage,
		Content:   env.Content,
		Sender:    sender,
		Timestamp: timestamp,
	}

	if env.Recipient != "" {
		if !d.SendToUser(env.Recipient, out) {
			log.Printf("Message from %q to %q not delivered", sender, env.Recipient)
		}
		return
	}

	// The sender gets its own message back as delivery confirmation.
	d.Broadcast(out)
}

// Broadcast serializes env once and sends the identical bytes to
// every session in the current registry snapshot. Connections whose
// send fails are removed after the sweep completes, never while the
// snapshot is being walked.
func (d *Dispatcher) Broadcast(env shared.Envelope) {
	data, err := shared.FormatEnvelope(env)
	if err != nil {
		log.Printf("Error encoding broadcast envelope: %v", err)
		return
	}

	var failed []*shared.Client
	for _, sess := range d.registry.Snapshot() {
		if err := sess.Client.Send(data); err != nil {
			log.Printf("Error sending to client %s (%s): %v", sess.Username, sess.Client.Addr, err)
			failed = append(failed, sess.Client)
		}
	}

	for _, c := range failed {
		d.registry.Remove(c)
	}
}

// SendToUser delivers env to the first connection associated with
// username. It reports false when no such user is registered or the
// send fails; a failed send also removes the connection. There is no
// broadcast fallback.
func (d *Dispatcher) SendToUser(username string, env shared.Envelope) bool {
	c, ok := d.registry.FindByUsername(username)
	if !ok {
		return false
	}

	data, err := shared.FormatEnvelope(env)
	if err != nil {
		log.Printf("Error encoding envelope for %q: %v", username, err)
		return false
	}

	if err := c.Send(data); err != nil {
		log.Printf("Error sending to user %q (%s): %v", username, c.Addr, err)
		d.registry.Remove(c)
		return false
	}
	return true
}
