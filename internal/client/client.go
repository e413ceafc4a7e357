package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/namegate/internal/network"
	lru "github.com/hashicorp/golang-lru"
	uuid "github.com/satori/go.uuid"
)

var (
	ErrNoBackend        = errors.New("client: no backend bound")
	ErrClosed           = errors.New("client: closed")
	ErrNotQuery         = errors.New("client: operation is not a query")
	ErrNotMutation      = errors.New("client: operation is not a mutation")
	ErrInvalidVariables = errors.New("client: invalid variables")
)

type Operation string

// Local operations, answered from client state.
const (
	GetErrors  Operation = "GET_ERRORS"
	SetError   Operation = "SET_ERROR"
	ClearError Operation = "CLEAR_ERROR"
	GetNetwork Operation = "GET_NETWORK"
	GetLabels  Operation = "GET_LABELS"
)

const defaultCacheSize = 256

// Request is one query or mutation.
type Request struct {
	Operation Operation
	Variables map[string]any
	// NetworkOnly skips the query cache.
	NetworkOnly bool
}

type Response struct {
	Data map[string]any
}

// ErrorRecord is the last recorded provisioning failure.
type ErrorRecord struct {
	Message    string    `json:"message"`
	RecordedAt time.Time `json:"recordedAt"`
}

// LabelSource supplies persisted label overrides.
type LabelSource interface {
	Load(ctx context.Context) (map[string]string, error)
}

// Backend serves remote operations for one network.
type Backend interface {
	Do(ctx context.Context, req Request) (Response, error)
	Close()
}

type Options struct {
	Network   network.Optional
	Backend   Backend
	Labels    LabelSource
	CacheSize int
}

// Client is a data client bound to one network, or to none for a fallback client.
type Client struct {
	id      string
	network network.Optional
	created time.Time
	backend Backend
	labels  LabelSource
	cache   *lru.Cache

	mu     sync.RWMutex
	record *ErrorRecord

	closeOnce sync.Once
	closed    atomic.Bool
}

func New(opts Options) *Client {
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		cache = nil
	}
	return &Client{
		id:      uuid.NewV4().String(),
		network: opts.Network,
		created: time.Now(),
		backend: opts.Backend,
		labels:  opts.Labels,
		cache:   cache,
	}
}

// NewFallback returns a client with no network binding and no backend.
func NewFallback(labels LabelSource) *Client {
	return New(Options{Labels: labels})
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Network() (network.ID, bool) {
	return c.network.ID, c.network.Set
}

func (c *Client) Binding() network.Optional {
	return c.network
}

// Fallback reports whether the client has no network binding.
func (c *Client) Fallback() bool {
	return !c.network.Set
}

func (c *Client) CreatedAt() time.Time {
	return c.created
}

func (c *Client) Closed() bool {
	return c.closed.Load()
}

// Close releases the backend. Local state stays readable.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.backend != nil {
			c.backend.Close()
		}
	})
}

// ErrorRecord returns the recorded error, if any.
func (c *Client) ErrorRecord() (ErrorRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.record == nil {
		return ErrorRecord{}, false
	}
	return *c.record, true
}

func (c *Client) Query(ctx context.Context, req Request) (Response, error) {
	switch req.Operation {
	case GetErrors:
		return c.queryErrors(), nil
	case GetNetwork:
		return c.queryNetwork(), nil
	case GetLabels:
		return c.queryLabels(ctx)
	case SetError, ClearError:
		return Response{}, fmt.Errorf("%w: %s", ErrNotQuery, req.Operation)
	}

	key := ""
	if !req.NetworkOnly && c.cache != nil {
		key = cacheKey(req)
		if hit, ok := c.cache.Get(key); ok {
			return hit.(Response), nil
		}
	}
	resp, err := c.remote(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if key != "" {
		c.cache.Add(key, resp)
	}
	return resp, nil
}

func (c *Client) Mutate(ctx context.Context, req Request) (Response, error) {
	switch req.Operation {
	case SetError:
		return c.setError(req.Variables)
	case ClearError:
		c.mu.Lock()
		c.record = nil
		c.mu.Unlock()
		return Response{Data: map[string]any{"error": nil}}, nil
	case GetErrors, GetNetwork, GetLabels:
		return Response{}, fmt.Errorf("%w: %s", ErrNotMutation, req.Operation)
	}

	resp, err := c.remote(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if c.cache != nil {
		c.cache.Purge()
	}
	return resp, nil
}

func (c *Client) remote(ctx context.Context, req Request) (Response, error) {
	if c.backend == nil {
		return Response{}, fmt.Errorf("%w: %s", ErrNoBackend, req.Operation)
	}
	if c.closed.Load() {
		return Response{}, ErrClosed
	}
	return c.backend.Do(ctx, req)
}

func (c *Client) setError(vars map[string]any) (Response, error) {
	raw, ok := vars["message"]
	if !ok {
		return Response{}, fmt.Errorf("%w: message is required", ErrInvalidVariables)
	}
	message, ok := raw.(string)
	if !ok {
		return Response{}, fmt.Errorf("%w: message must be a string", ErrInvalidVariables)
	}
	record := ErrorRecord{Message: message, RecordedAt: time.Now()}
	c.mu.Lock()
	c.record = &record
	c.mu.Unlock()
	return Response{Data: map[string]any{"error": record}}, nil
}

func (c *Client) queryErrors() Response {
	record, ok := c.ErrorRecord()
	if !ok {
		return Response{Data: map[string]any{"error": nil}}
	}
	return Response{Data: map[string]any{"error": record}}
}

func (c *Client) queryNetwork() Response {
	if !c.network.Set {
		return Response{Data: map[string]any{"network": nil}}
	}
	return Response{Data: map[string]any{
		"network": uint64(c.network.ID),
		"name":    c.network.ID.String(),
	}}
}

func (c *Client) queryLabels(ctx context.Context) (Response, error) {
	if c.labels == nil {
		return Response{Data: map[string]any{"labels": map[string]string{}}}, nil
	}
	labels, err := c.labels.Load(ctx)
	if err != nil {
		return Response{}, err
	}
	return Response{Data: map[string]any{"labels": labels}}, nil
}

// ErrorMessage extracts the recorded error message from a GET_ERRORS response.
func ErrorMessage(resp Response) string {
	switch rec := resp.Data["error"].(type) {
	case ErrorRecord:
		return rec.Message
	case *ErrorRecord:
		if rec != nil {
			return rec.Message
		}
	}
	return ""
}

func cacheKey(req Request) string {
	vars, err := json.Marshal(req.Variables)
	if err != nil {
		vars = []byte(fmt.Sprint(req.Variables))
	}
	return strings.Join([]string{string(req.Operation), string(vars)}, "|")
}
