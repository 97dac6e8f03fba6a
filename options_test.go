package peermail

import (
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDefaultConstants(t *testing.T) {
	if defaultCallTimeout != 5*time.Second {
		t.Errorf("defaultCallTimeout = %v, want 5s", defaultCallTimeout)
	}
	if defaultMaxChunkSize != 200*1024 {
		t.Errorf("defaultMaxChunkSize = %d, want 200 KiB", defaultMaxChunkSize)
	}
	if maxHandleLength != 64 {
		t.Errorf("maxHandleLength = %d, want 64", maxHandleLength)
	}
}

func TestWithCallTimeout(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{3 * time.Second, 3 * time.Second},
		{0, 5 * time.Second},
		{time.Millisecond, time.Second},
		{time.Minute, 10 * time.Second},
	}
	for _, tt := range tests {
		cfg := &agentConfig{}
		WithCallTimeout(tt.in)(cfg)
		if cfg.callTimeout != tt.want {
			t.Errorf("WithCallTimeout(%v) = %v, want %v", tt.in, cfg.callTimeout, tt.want)
		}
	}
}

func TestAgentOptions(t *testing.T) {
	cfg := &agentConfig{}
	dir, _ := NewStaticDirectory()
	fixed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	logger := zerolog.Nop()

	WithLogger(logger)(cfg)
	WithDirectory(dir)(cfg)
	WithNotifier(NotifierFunc(func(Event) {}))(cfg)
	WithAddress("http://127.0.0.1:7400")(cfg)
	WithClock(func() time.Time { return fixed })(cfg)
	WithMaxChunkSize(1024)(cfg)
	WithMaxFileSize(4096)(cfg)

	if cfg.directory != dir {
		t.Error("directory not set")
	}
	if cfg.notifier == nil {
		t.Error("notifier not set")
	}
	if cfg.address != "http://127.0.0.1:7400" {
		t.Errorf("address = %s", cfg.address)
	}
	if !cfg.now().Equal(fixed) {
		t.Errorf("now() = %v, want %v", cfg.now(), fixed)
	}
	if cfg.maxChunkSize != 1024 || cfg.maxFileSize != 4096 {
		t.Errorf("sizes = %d, %d", cfg.maxChunkSize, cfg.maxFileSize)
	}
}

func TestListConfig_Matches(t *testing.T) {
	item := &MailItem{
		Direction: Inbound,
		Author:    "b",
		Mail:      Mail{Subject: "Weekly report", To: []AgentID{"a"}},
		State:     StateAckUnsent,
	}

	tests := []struct {
		name string
		opts []ListOption
		want bool
	}{
		{"no filters", nil, true},
		{"direction match", []ListOption{WithDirection(Inbound)}, true},
		{"direction mismatch", []ListOption{WithDirection(Outbound)}, false},
		{"from match", []ListOption{WithFrom("b")}, true},
		{"from mismatch", []ListOption{WithFrom("c")}, false},
		{"subject exact", []ListOption{WithSubject("Weekly report")}, true},
		{"subject partial", []ListOption{WithSubject("Weekly")}, false},
		{"regex match", []ListOption{WithSubjectRegex(regexp.MustCompile(`(?i)report$`))}, true},
		{"regex mismatch", []ListOption{WithSubjectRegex(regexp.MustCompile(`^Daily`))}, false},
		{"state match", []ListOption{WithState(StateAckUnsent)}, true},
		{"state mismatch", []ListOption{WithState(StateAckDelivered)}, false},
		{"predicate", []ListOption{WithPredicate(func(m *MailItem) bool { return len(m.Mail.To) == 1 })}, true},
		{"one failing filter", []ListOption{WithFrom("b"), WithState(StateUnacknowledged)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &listConfig{}
			for _, opt := range tt.opts {
				opt(cfg)
			}
			if got := cfg.Matches(item); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
