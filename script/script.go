// Package script resolves mocked connections from a table of canned rules.
// A Responder attached to a backend answers each matching connection the
// moment it is created, so tests that only need fixed responses never touch
// individual connections.
package script

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/webmock/transport/backend"
	"github.com/webmock/transport/broadcast"
	"github.com/webmock/transport/connection"
	"github.com/webmock/transport/message"
)

// Rule holds the scripted outcome for one method/URL pair.
type Rule struct {
	resp *message.Response
	err  error
}

// Reply scripts a successful response with the given status code and body.
func (r *Rule) Reply(statusCode int, body []byte) {
	r.resp = message.NewResponse(statusCode, body)
	r.err = nil
}

// ReplyError scripts an error outcome.
func (r *Rule) ReplyError(err error) {
	r.resp = nil
	r.err = err
}

type ruleKey struct {
	method string
	url    string
}

// Responder maps method/URL pairs to scripted outcomes.
type Responder struct {
	mu    sync.Mutex
	rules map[ruleKey]*Rule
}

// NewResponder creates a Responder with no rules.
func NewResponder() *Responder {
	return &Responder{rules: map[ruleKey]*Rule{}}
}

// On returns the rule for the given method and URL, creating it if needed.
// Scripting the same pair twice overwrites the previous outcome.
func (r *Responder) On(method, url string) *Rule {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ruleKey{method: method, url: url}
	rule, ok := r.rules[key]
	if !ok {
		rule = &Rule{}
		r.rules[key] = rule
	}
	return rule
}

// Attach subscribes the responder to b's connection stream. Every connection
// created afterwards is resolved immediately when a rule matches its request;
// connections without a matching rule stay open for the test to resolve by
// hand. Cancel the returned subscription to detach.
func (r *Responder) Attach(b *backend.MockBackend) *broadcast.Subscription[*connection.Connection] {
	return b.ConnectionStream().Subscribe(broadcast.Listener[*connection.Connection]{
		OnValue: r.resolve,
	})
}

func (r *Responder) resolve(c *connection.Connection) {
	req := c.Request()
	r.mu.Lock()
	rule, ok := r.rules[ruleKey{method: req.Method, url: req.URL}]
	var resp *message.Response
	var scriptedErr error
	if ok {
		resp, scriptedErr = rule.resp, rule.err
	}
	r.mu.Unlock()
	if !ok {
		log.WithField("caller", "transport/script").
			WithField("conn", c.ID()).
			WithField("url", req.URL).
			Debug("no rule, connection left open")
		return
	}
	if scriptedErr != nil {
		c.Error(scriptedErr)
		return
	}
	if err := c.Respond(resp); err != nil {
		log.WithField("caller", "transport/script").WithField("conn", c.ID()).WithError(err).Warn("scripted respond failed")
	}
}
