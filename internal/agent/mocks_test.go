// File: internal/agent/mocks_test.go
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// mockSurface records every call so tests can assert exactly which actions
// reached the page.
type mockSurface struct {
	mu         sync.Mutex
	clicks     []string
	fills      []string
	fillTexts  []string
	presses    []string
	scrolls    int
	navigated  []string
	currentURL string
	content    string
	clickErr   error
	navErr     error
	shots      int
	shotErr    error
}

func (m *mockSurface) Navigate(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.navigated = append(m.navigated, url)
	return m.navErr
}

func (m *mockSurface) CurrentURL(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentURL == "" {
		return "https://example.com/list", nil
	}
	return m.currentURL, nil
}

func (m *mockSurface) Content(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.content, nil
}

func (m *mockSurface) Screenshot(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shots++
	if m.shotErr != nil {
		return nil, m.shotErr
	}
	return []byte("png"), nil
}

func (m *mockSurface) Click(_ context.Context, selector string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks = append(m.clicks, selector)
	return m.clickErr
}

func (m *mockSurface) Fill(_ context.Context, selector, text string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fills = append(m.fills, selector)
	m.fillTexts = append(m.fillTexts, text)
	return nil
}

func (m *mockSurface) Press(_ context.Context, selector, key string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presses = append(m.presses, selector+"/"+key)
	return nil
}

func (m *mockSurface) ScrollBy(context.Context, int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scrolls++
	return nil
}

func (m *mockSurface) ClearInputs(context.Context) error { return nil }

func (m *mockSurface) Evaluate(context.Context, string, any) error { return nil }

func (m *mockSurface) Close(context.Context) error { return nil }

func (m *mockSurface) clickCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clicks)
}

// mockLocator returns a canned candidate list.
type mockLocator struct {
	matches []schemas.ElementCandidate
	err     error
}

func (m *mockLocator) Search(context.Context, schemas.InteractionSurface, string) ([]schemas.ElementCandidate, error) {
	return m.matches, m.err
}

// mockBroker resolves or times out according to its programming.
type mockBroker struct {
	mu       sync.Mutex
	value    string
	err      error
	requests []schemas.HumanInputRequest
}

func (m *mockBroker) Request(_ context.Context, _ string, req schemas.HumanInputRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.value, m.err
}

func (m *mockBroker) Resolve(string, string) error { return nil }

func (m *mockBroker) Pending(string) (schemas.HumanInputRequest, bool) {
	return schemas.HumanInputRequest{}, false
}

// scriptedOracle replays a fixed sequence of proposals, repeating the last
// one when the script runs out.
type scriptedOracle struct {
	mu        sync.Mutex
	proposals []schemas.Proposal
	calls     int
	usage     schemas.Usage
}

func (o *scriptedOracle) Refine(_ context.Context, _, query string) (string, schemas.Usage, error) {
	return "refined: " + query, o.usage, nil
}

func (o *scriptedOracle) Decide(context.Context, schemas.DecideRequest) (schemas.Proposal, schemas.Usage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.proposals) == 0 {
		return schemas.Proposal{Action: schemas.FinishAction("script exhausted")}, o.usage, nil
	}
	idx := o.calls
	if idx >= len(o.proposals) {
		idx = len(o.proposals) - 1
	}
	o.calls++
	return o.proposals[idx], o.usage, nil
}

// captureSink collects telemetry without any channel machinery.
type captureSink struct {
	mu     sync.Mutex
	events []schemas.TelemetryEventKind
}

func (s *captureSink) Publish(kind schemas.TelemetryEventKind, _ map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, kind)
}

func (s *captureSink) count(kind schemas.TelemetryEventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range s.events {
		if k == kind {
			n++
		}
	}
	return n
}

func extractProposal(n int) schemas.Proposal {
	items := make([]schemas.ExtractedItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, schemas.ExtractedItem{
			"title": fmt.Sprintf("item %d", i),
			"url":   fmt.Sprintf("/detail/%d", i),
		})
	}
	return schemas.Proposal{
		Thought: "extracting visible items",
		Action:  schemas.Action{Type: schemas.ActionExtract, Items: items},
	}
}
