// Package router spreads gateway calls over several API clients, one per
// configured API key, in strict round-robin order.
package router

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync/atomic"

	"maestro-go-agents/client"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// ErrNoClients is returned by Send when the router was built without clients.
var ErrNoClients = errors.New("router: no clients available")

var palette = []lipgloss.Color{"#7D56F4", "#04B575", "#F25D94", "#EDFF82", "#00B8D4", "#FF8700"}

type namedClient struct {
	client client.Gateway
	name   string
	label  string
}

// Router is a client.Gateway that delegates each call to the next client.
type Router struct {
	clients []namedClient
	counter uint64
	logger  *log.Logger
}

// NewRouter names the clients key-1..key-n and colors each name for the logs.
func NewRouter(clients []client.Gateway, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}

	namedClients := make([]namedClient, len(clients))
	for i, c := range clients {
		name := fmt.Sprintf("key-%d", i+1)
		namedClients[i] = namedClient{
			client: c,
			name:   name,
			label:  lipgloss.NewStyle().Foreground(colorFor(name)).Render("[ " + name + " ]"),
		}
	}

	return &Router{
		clients: namedClients,
		logger:  logger,
	}
}

func colorFor(name string) lipgloss.Color {
	h := fnv.New32a()
	h.Write([]byte(name))
	return palette[h.Sum32()%uint32(len(palette))]
}

// Len returns how many clients the router cycles through.
func (r *Router) Len() int {
	return len(r.clients)
}

func (r *Router) Send(ctx context.Context, req client.Request) (*client.Response, error) {
	if len(r.clients) == 0 {
		return nil, ErrNoClients
	}

	index := atomic.AddUint64(&r.counter, 1) - 1
	selected := r.clients[index%uint64(len(r.clients))]

	r.logger.Debug(selected.label+" used to handle request", "client", selected.name, "model", req.Model)

	return selected.client.Send(ctx, req)
}
