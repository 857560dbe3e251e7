package router

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"maestro-go-agents/client"

	"github.com/charmbracelet/log"
)

type mockClient struct {
	id string
}

func (m *mockClient) Send(ctx context.Context, req client.Request) (*client.Response, error) {
	return &client.Response{RequestID: m.id}, nil
}

func TestRouter_RoundRobin(t *testing.T) {
	clients := []client.Gateway{
		&mockClient{id: "client1"},
		&mockClient{id: "client2"},
		&mockClient{id: "client3"},
	}

	logger := log.New(io.Discard)
	router := NewRouter(clients, logger)

	if router.Len() != 3 {
		t.Fatalf("expected 3 clients, got %d", router.Len())
	}

	expectedOrder := []string{"client1", "client2", "client3", "client1", "client2", "client3"}
	for i, expectedID := range expectedOrder {
		resp, err := router.Send(context.Background(), client.Request{Model: "gpt-4o"})
		if err != nil {
			t.Fatalf("Request %d failed: %v", i+1, err)
		}
		if resp.RequestID != expectedID {
			t.Errorf("Request %d: expected client %s, got %s", i+1, expectedID, resp.RequestID)
		}
	}
}

func TestRouter_ConcurrentCallsSpreadEvenly(t *testing.T) {
	counts := map[string]int{}
	var mu sync.Mutex
	clients := []client.Gateway{&mockClient{id: "a"}, &mockClient{id: "b"}}
	router := NewRouter(clients, log.New(io.Discard))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := router.Send(context.Background(), client.Request{})
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			counts[resp.RequestID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if counts["a"] != 5 || counts["b"] != 5 {
		t.Errorf("expected 5/5 split, got %v", counts)
	}
}

func TestRouter_EmptyClients(t *testing.T) {
	router := NewRouter([]client.Gateway{}, nil)

	_, err := router.Send(context.Background(), client.Request{})
	if !errors.Is(err, ErrNoClients) {
		t.Errorf("expected ErrNoClients, got %v", err)
	}
}
