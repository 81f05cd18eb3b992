package push

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type fakeMessenger struct {
	sentTokens []string
	title      string
	body       string
	invalid    []string
	err        error
}

func (m *fakeMessenger) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (int, int, []string, error) {
	m.sentTokens = tokens
	m.title = title
	m.body = body
	if m.err != nil {
		return 0, len(tokens), nil, m.err
	}
	return len(tokens) - len(m.invalid), len(m.invalid), m.invalid, nil
}

type fakeTokenStore struct {
	mu     sync.Mutex
	tokens []string
	pruned []string
	done   chan struct{}
}

func (s *fakeTokenStore) TokensForAudience(ctx context.Context, aud Audience) ([]string, error) {
	return s.tokens, nil
}

func (s *fakeTokenStore) PruneTokens(ctx context.Context, tokens []string) error {
	s.mu.Lock()
	s.pruned = append(s.pruned, tokens...)
	s.mu.Unlock()
	if s.done != nil {
		close(s.done)
	}
	return nil
}

func TestDispatchPrunesInvalidTokens(t *testing.T) {
	store := &fakeTokenStore{
		tokens: []string{"tok-live", "tok-dead-1", "tok-dead-2"},
		done:   make(chan struct{}),
	}
	messenger := &fakeMessenger{invalid: []string{"tok-dead-1", "tok-dead-2"}}
	d := &Dispatcher{Messenger: messenger, Store: store, Logger: logrus.New()}

	result, err := d.Dispatch(context.Background(), Audience{GroupName: "admin"}, "title", "body", nil)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.Targets != 3 || result.Success != 1 || result.Failure != 2 || result.Pruned != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}

	// Pruning runs in the background.
	select {
	case <-store.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("prune did not run")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	sort.Strings(store.pruned)
	if !reflect.DeepEqual(store.pruned, []string{"tok-dead-1", "tok-dead-2"}) {
		t.Fatalf("pruned = %v", store.pruned)
	}
}

func TestDispatchNoTokensIsNoop(t *testing.T) {
	store := &fakeTokenStore{}
	messenger := &fakeMessenger{}
	d := &Dispatcher{Messenger: messenger, Store: store, Logger: logrus.New()}

	result, err := d.Dispatch(context.Background(), Audience{GroupName: "sales"}, "title", "body", nil)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if result.Targets != 0 {
		t.Fatalf("expected zero targets, got %+v", result)
	}
	if messenger.sentTokens != nil {
		t.Fatalf("messenger must not be called with no tokens")
	}
}

func TestDedupeTokens(t *testing.T) {
	got := dedupeTokens([]string{"a", "", "b", "a", "b", "c"})
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("dedupeTokens = %v", got)
	}
}
