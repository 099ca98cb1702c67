package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Agent is an immutable descriptor from the hub's catalog.
type Agent struct {
	Type   string   `json:"type"`
	Name   string   `json:"name"`
	Icon   string   `json:"icon"`
	Skills []string `json:"skills"`
}

// Catalog holds the agent list fetched once at startup. Read-only reference
// data for the lifetime of the process.
type Catalog struct {
	order  []string
	agents map[string]Agent
}

func NewCatalog(list []Agent) *Catalog {
	c := &Catalog{agents: make(map[string]Agent, len(list))}
	for _, a := range list {
		key := strings.TrimSpace(a.Type)
		if key == "" {
			continue
		}
		if _, dup := c.agents[key]; dup {
			continue
		}
		c.agents[key] = a
		c.order = append(c.order, key)
	}
	return c
}

func (c *Catalog) Get(agentType string) (Agent, bool) {
	a, ok := c.agents[strings.TrimSpace(agentType)]
	return a, ok
}

func (c *Catalog) Has(agentType string) bool {
	_, ok := c.Get(agentType)
	return ok
}

func (c *Catalog) List() []Agent {
	out := make([]Agent, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.agents[key])
	}
	return out
}

func (c *Catalog) Len() int { return len(c.order) }

type listResponse struct {
	Success bool    `json:"success"`
	Agents  []Agent `json:"agents"`
	Error   string  `json:"error"`
}

// Fetch loads the catalog from the hub's list endpoint.
func Fetch(ctx context.Context, baseURL string) (*Catalog, error) {
	url := strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/api/agents"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create catalog request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("catalog status %d: %s", res.StatusCode, string(body))
	}

	var decoded listResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if !decoded.Success {
		msg := strings.TrimSpace(decoded.Error)
		if msg == "" {
			msg = "catalog fetch rejected"
		}
		return nil, errors.New(msg)
	}
	return NewCatalog(decoded.Agents), nil
}
