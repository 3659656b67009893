package goAuthz

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func collectEvents(sink *ChannelSink) []AuditEvent {
	var out []AuditEvent
	for {
		select {
		case e := <-sink.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestAuditLoginEvents(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	sink := NewChannelSink(64)
	te := newTestEngine(t, cfg, func(b *Builder) { b.WithAuditSink(sink) })
	te.register(t, "alice", "correct-horse")

	ctx := WithUserAgent(WithClientIP(context.Background(), "198.51.100.7"), "test-agent")
	if _, err := te.Login(ctx, "alice", "wrong-horse", false); err == nil {
		t.Fatal("expected login failure")
	}
	if _, err := te.Login(ctx, "alice", "correct-horse", false); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	te.Close()

	events := collectEvents(sink)
	var failure, success *AuditEvent
	for i := range events {
		switch events[i].EventType {
		case auditEventLoginFailure:
			failure = &events[i]
		case auditEventLoginSuccess:
			success = &events[i]
		}
	}
	if failure == nil || success == nil {
		t.Fatalf("expected login failure and success events, got %+v", events)
	}
	if failure.Error != string(auditErrInvalidCredentials) || failure.Success {
		t.Fatalf("unexpected failure event: %+v", failure)
	}
	if success.IP != "198.51.100.7" || success.UserAgent != "test-agent" {
		t.Fatalf("expected client metadata on event, got %+v", success)
	}
	if success.UserID == "" || success.Username != "alice" {
		t.Fatalf("expected subject on success event, got %+v", success)
	}
}

func TestAuditPrivilegeChangesAreCritical(t *testing.T) {
	critical := []string{auditEventRefreshReuseDetected, auditEventAccountStatusChange, auditEventRoleAssigned, auditEventRoleRevoked}
	for _, typ := range critical {
		if !criticalAuditEvent(AuditEvent{EventType: typ}) {
			t.Fatalf("expected %s to be critical", typ)
		}
	}
	for _, typ := range []string{auditEventLoginSuccess, auditEventLoginFailure, auditEventAccessDenied} {
		if criticalAuditEvent(AuditEvent{EventType: typ}) {
			t.Fatalf("expected %s to be routine", typ)
		}
	}

	te := newTestEngine(t, testConfig())
	if got := te.AuditDroppedByType(); len(got) != 0 {
		t.Fatalf("expected no drops with auditing disabled, got %v", got)
	}
}

func TestAuditNeverCarriesSecrets(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	var buf bytes.Buffer
	te := newTestEngine(t, cfg, func(b *Builder) { b.WithAuditSink(NewJSONWriterSink(&buf)) })
	te.register(t, "alice", "correct-horse")

	pair, err := te.Login(context.Background(), "alice", "correct-horse", true)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := te.Refresh(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	te.Close()

	out := buf.String()
	for _, secret := range []string{"correct-horse", pair.AccessToken, pair.RefreshToken} {
		if strings.Contains(out, secret) {
			t.Fatalf("audit output leaked a secret: %s", out)
		}
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	for _, line := range lines {
		var e AuditEvent
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("invalid audit line %q: %v", line, err)
		}
	}
}

func TestAuditDisabledByDefault(t *testing.T) {
	sink := NewChannelSink(8)
	te := newTestEngine(t, testConfig(), func(b *Builder) { b.WithAuditSink(sink) })
	te.register(t, "alice", "correct-horse")
	te.Close()

	if got := len(collectEvents(sink)); got != 0 {
		t.Fatalf("expected no events with audit disabled, got %d", got)
	}
	if te.AuditDropped() != 0 {
		t.Fatal("expected zero dropped events")
	}
}
