package peermail

import (
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaultsandbox/peermail/internal/transport"
)

const (
	defaultCallTimeout  = transport.DefaultTimeout
	defaultMaxChunkSize = 200 * 1024
	defaultMaxFileSize  = 10 * 1024 * 1024
	maxHandleLength     = 64
)

// agentConfig holds configuration for the agent.
type agentConfig struct {
	logger       zerolog.Logger
	directory    Directory
	notifier     Notifier
	address      string
	callTimeout  time.Duration
	now          func() time.Time
	maxChunkSize int
	maxFileSize  int64
}

// listConfig holds filters for mail listing.
type listConfig struct {
	direction    Direction
	from         AgentID
	subject      string
	subjectRegex *regexp.Regexp
	state        MailState
	predicate    func(*MailItem) bool
}

// Option configures the agent.
type Option func(*agentConfig)

// ListOption filters the mails returned by Agent.Mails.
type ListOption func(*listConfig)

// WithLogger sets the structured logger. Default: zerolog.Nop().
func WithLogger(logger zerolog.Logger) Option {
	return func(c *agentConfig) {
		c.logger = logger
	}
}

// WithDirectory sets the peer directory. Default: an empty StaticDirectory.
func WithDirectory(dir Directory) Option {
	return func(c *agentConfig) {
		c.directory = dir
	}
}

// WithNotifier sets an external sink that receives every event in addition
// to the subscribers registered with Agent.Subscribe.
func WithNotifier(n Notifier) Option {
	return func(c *agentConfig) {
		c.notifier = n
	}
}

// WithAddress sets the address peers use to reach this agent.
// It is sent with every direct call.
func WithAddress(address string) Option {
	return func(c *agentConfig) {
		c.address = address
	}
}

// WithCallTimeout bounds every direct call. Values are clamped to 1–10 seconds.
// Default: 5 seconds
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *agentConfig) {
		c.callTimeout = transport.ClampTimeout(timeout)
	}
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *agentConfig) {
		c.now = now
	}
}

// WithMaxChunkSize sets the largest chunk WriteFile stores.
// Default: 200 KiB
func WithMaxChunkSize(n int) Option {
	return func(c *agentConfig) {
		c.maxChunkSize = n
	}
}

// WithMaxFileSize sets the largest file WriteFile accepts.
// Default: 10 MiB
func WithMaxFileSize(n int64) Option {
	return func(c *agentConfig) {
		c.maxFileSize = n
	}
}

// WithDirection keeps only inbound or only outbound mails.
func WithDirection(d Direction) ListOption {
	return func(c *listConfig) {
		c.direction = d
	}
}

// WithFrom keeps mails authored by the given agent.
func WithFrom(from AgentID) ListOption {
	return func(c *listConfig) {
		c.from = from
	}
}

// WithSubject keeps mails with exactly this subject.
func WithSubject(subject string) ListOption {
	return func(c *listConfig) {
		c.subject = subject
	}
}

// WithSubjectRegex keeps mails whose subject matches pattern.
func WithSubjectRegex(pattern *regexp.Regexp) ListOption {
	return func(c *listConfig) {
		c.subjectRegex = pattern
	}
}

// WithState keeps mails in the given state.
func WithState(state MailState) ListOption {
	return func(c *listConfig) {
		c.state = state
	}
}

// WithPredicate keeps mails accepted by fn.
func WithPredicate(fn func(*MailItem) bool) ListOption {
	return func(c *listConfig) {
		c.predicate = fn
	}
}

// Matches checks if a mail item passes every filter.
func (l *listConfig) Matches(m *MailItem) bool {
	if l.direction != "" && m.Direction != l.direction {
		return false
	}
	if l.from != "" && m.Author != l.from {
		return false
	}
	if l.subject != "" && m.Mail.Subject != l.subject {
		return false
	}
	if l.subjectRegex != nil && !l.subjectRegex.MatchString(m.Mail.Subject) {
		return false
	}
	if l.state != "" && m.State != l.state {
		return false
	}
	if l.predicate != nil && !l.predicate(m) {
		return false
	}
	return true
}
