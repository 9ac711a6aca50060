package service

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/login-api/internal/events"
)

func TestAuthEventsReachAuditLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewAuditService(dispatcher, zap.New(core)).RegisterHandlers()

	svc, _ := newTestService(t, nil)
	svc.events = dispatcher
	ctx := context.Background()

	if _, err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "wrong-password", "10.0.0.1"); err == nil {
		t.Fatal("expected login failure")
	}
	access, err := svc.Login(ctx, "alice", "correct-horse", "10.0.0.1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	want := []struct {
		message string
		level   zapcore.Level
	}{
		{message: string(events.EventUserRegistered), level: zapcore.InfoLevel},
		{message: string(events.EventLoginFailed), level: zapcore.WarnLevel},
		{message: string(events.EventLoginSucceeded), level: zapcore.InfoLevel},
	}
	entries := logs.All()
	if len(entries) != len(want) {
		t.Fatalf("got %d audit entries, want %d", len(entries), len(want))
	}
	for i, w := range want {
		if entries[i].Message != w.message || entries[i].Level != w.level {
			t.Fatalf("entry %d = %s/%s, want %s/%s", i, entries[i].Message, entries[i].Level, w.message, w.level)
		}
		if entries[i].ContextMap()["subject"] != "alice" {
			t.Fatalf("entry %d subject = %v", i, entries[i].ContextMap()["subject"])
		}
		for _, f := range entries[i].Context {
			if strings.Contains(f.String, "correct-horse") || strings.Contains(f.String, access.Value) {
				t.Fatalf("entry %d leaks credentials", i)
			}
		}
	}
}

func TestThrottledLoginIsAudited(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewAuditService(dispatcher, zap.New(core)).RegisterHandlers()

	limiter := &countingLimiter{limit: 0, attempts: map[string]int{}}
	svc, _ := newTestService(t, limiter)
	svc.events = dispatcher

	if _, err := svc.Login(context.Background(), "alice", "whatever-pass", "10.0.0.1"); err == nil {
		t.Fatal("expected throttled login")
	}
	if logs.FilterMessage(string(events.EventLoginThrottled)).Len() != 1 {
		t.Fatalf("throttle not audited: %v", logs.All())
	}
}
