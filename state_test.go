package peermail

import "testing"

func TestRecipientState(t *testing.T) {
	t.Parallel()

	mail := RecordID{1}
	other := RecordID{2}
	acks := []InboundAck{
		{OutboundMail: mail, From: "b"},
		{OutboundMail: other, From: "c"},
	}

	tests := []struct {
		name      string
		mail      RecordID
		recipient AgentID
		want      DeliveryState
	}{
		{"acked", mail, "b", Acknowledged},
		{"ack for another mail", mail, "c", Unsent},
		{"no ack", mail, "d", Unsent},
		{"other mail acked", other, "c", Acknowledged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RecipientState(tt.mail, tt.recipient, acks); got != tt.want {
				t.Errorf("RecipientState() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOutboundStatus(t *testing.T) {
	t.Parallel()

	id := RecordID{9}
	om := OutboundMail{Mail: Mail{To: []AgentID{"b"}, Cc: []AgentID{"c"}}, Bcc: []AgentID{"d"}}

	tests := []struct {
		name string
		acks []InboundAck
		want MailState
	}{
		{"nobody", nil, StateUnsent},
		{"one of three", []InboundAck{{OutboundMail: id, From: "c"}}, StatePartiallyAcknowledged},
		{"bcc only", []InboundAck{{OutboundMail: id, From: "d"}}, StatePartiallyAcknowledged},
		{"all", []InboundAck{
			{OutboundMail: id, From: "b"},
			{OutboundMail: id, From: "c"},
			{OutboundMail: id, From: "d"},
		}, StateAcknowledged},
		{"acks for another mail", []InboundAck{{OutboundMail: RecordID{8}, From: "b"}}, StateUnsent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OutboundStatus(id, om, tt.acks); got != tt.want {
				t.Errorf("OutboundStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInboundStatus(t *testing.T) {
	t.Parallel()

	in := RecordID{1}
	ack := RecordID{2}

	tests := []struct {
		name  string
		ackOf map[RecordID]RecordID
		confs []DeliveryConfirmation
		want  MailState
	}{
		{"no ack", nil, nil, StateUnacknowledged},
		{"ack unsent", map[RecordID]RecordID{in: ack}, nil, StateAckUnsent},
		{"confirmation for another ack", map[RecordID]RecordID{in: ack}, []DeliveryConfirmation{{OutboundAck: RecordID{3}}}, StateAckUnsent},
		{"ack delivered", map[RecordID]RecordID{in: ack}, []DeliveryConfirmation{{OutboundAck: ack}}, StateAckDelivered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InboundStatus(in, tt.ackOf, tt.confs); got != tt.want {
				t.Errorf("InboundStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStateStrings(t *testing.T) {
	t.Parallel()

	if Unsent.String() != "unsent" || Acknowledged.String() != "acknowledged" {
		t.Errorf("DeliveryState strings = %s, %s", Unsent, Acknowledged)
	}
	outcomes := map[Outcome]string{
		OutcomeSuccess:     "success",
		OutcomeTimeout:     "timeout",
		OutcomeUnreachable: "unreachable",
		OutcomeRejected:    "rejected",
		OutcomeFailed:      "failed",
		Outcome(42):        "unknown",
	}
	for o, want := range outcomes {
		if o.String() != want {
			t.Errorf("Outcome(%d).String() = %s, want %s", int(o), o, want)
		}
	}
}
