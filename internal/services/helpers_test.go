package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"marketpulse/internal/domain/memory"
	"marketpulse/internal/events"
	"marketpulse/internal/runner"
)

type fakeRunner struct {
	mu       sync.Mutex
	err      error
	requests []runner.DispatchRequest
	onCall   func(req runner.DispatchRequest)
}

func (f *fakeRunner) TriggerWorkflow(_ context.Context, req runner.DispatchRequest) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(req)
	}
	return f.err
}

func (f *fakeRunner) HealthCheck(context.Context) error { return f.err }

func (f *fakeRunner) calls() []runner.DispatchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.DispatchRequest(nil), f.requests...)
}

type fakeMemory struct {
	snapshot *memory.Context
	err      error
}

func (f *fakeMemory) GetMemoryContext(context.Context, uuid.UUID, uuid.UUID) (*memory.Context, error) {
	return f.snapshot, f.err
}

// recordingAudit captures audit calls synchronously so tests can assert on
// them without sleeping.
type recordingAudit struct {
	mu      sync.Mutex
	actions []string
}

func (a *recordingAudit) Log(_ context.Context, _ uuid.UUID, action, _, _ string, _ *uuid.UUID, _, _ string) {
	a.mu.Lock()
	a.actions = append(a.actions, action)
	a.mu.Unlock()
}

func (a *recordingAudit) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.actions)
}

type fakePublisher struct {
	mu        sync.Mutex
	envelopes []events.Envelope
}

func (p *fakePublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	p.envelopes = append(p.envelopes, env)
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) published() []events.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Envelope(nil), p.envelopes...)
}

type fakeArchive struct {
	mu   sync.Mutex
	keys []string
}

func (a *fakeArchive) ArchiveCallback(_ context.Context, tenantID, requestID string, _ []byte) error {
	a.mu.Lock()
	a.keys = append(a.keys, tenantID+"/"+requestID)
	a.mu.Unlock()
	return nil
}

func (a *fakeArchive) archived() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.keys...)
}

type allowAllTenants struct{}

func (allowAllTenants) BelongsToTenant(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return true, nil
}

type denyAllTenants struct{}

func (denyAllTenants) BelongsToTenant(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}
