package quickjs

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/andyherbert/crabzilla/hostfunc"
	"github.com/andyherbert/crabzilla/value"
)

// Host call framing. The guest shim writes \x00CRAB:{json}\x00 to stderr
// and blocks reading one JSON line from stdin for the response. Everything
// outside frames is ordinary stderr output and passes through.
const (
	callPrefix = "\x00CRAB:"
	callSuffix = "\x00"
)

type callRequest struct {
	Fn   string        `json:"fn"`
	Args []value.Value `json:"args"`
}

type callResponse struct {
	Data value.Value `json:"data"`
	// Und marks an undefined result; the wire form cannot distinguish it
	// from null otherwise.
	Und   bool   `json:"und,omitempty"`
	Error string `json:"error,omitempty"`
}

// protocolHandler intercepts guest stderr to dispatch host function calls.
type protocolHandler struct {
	ctx         context.Context
	registry    *hostfunc.Registry
	stdinWriter *io.PipeWriter
	realStderr  bytes.Buffer
	buf         bytes.Buffer
	mu          sync.Mutex
}

func newProtocolHandler(ctx context.Context, registry *hostfunc.Registry, stdinWriter *io.PipeWriter) *protocolHandler {
	return &protocolHandler{
		ctx:         ctx,
		registry:    registry,
		stdinWriter: stdinWriter,
	}
}

func (p *protocolHandler) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf.Write(data)

	for {
		content := p.buf.String()
		startIdx := strings.Index(content, callPrefix)
		if startIdx == -1 {
			p.realStderr.WriteString(content)
			p.buf.Reset()
			break
		}

		p.realStderr.WriteString(content[:startIdx])

		endIdx := strings.Index(content[startIdx+len(callPrefix):], callSuffix)
		if endIdx == -1 {
			// Incomplete frame; wait for more bytes.
			p.buf.Reset()
			p.buf.WriteString(content[startIdx:])
			break
		}

		payload := content[startIdx+len(callPrefix) : startIdx+len(callPrefix)+endIdx]
		p.buf.Reset()
		p.buf.WriteString(content[startIdx+len(callPrefix)+endIdx+1:])

		var req callRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			p.respond(callResponse{Error: "invalid call format"})
			continue
		}

		p.respond(p.handleCall(req))
	}

	return len(data), nil
}

func (p *protocolHandler) handleCall(req callRequest) callResponse {
	if p.registry == nil {
		return callResponse{Error: "no host functions bound"}
	}

	result, err := p.registry.Invoke(p.ctx, req.Fn, req.Args)
	if err != nil {
		return callResponse{Error: err.Error()}
	}
	return callResponse{Data: result, Und: result.IsUndefined()}
}

// respond writes the response line on a separate goroutine: the guest
// thread is still inside this Write call and only starts draining stdin
// after it returns.
func (p *protocolHandler) respond(resp callResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		data = []byte(`{"error":"internal: failed to marshal response"}`)
	}
	go p.stdinWriter.Write(append(data, '\n'))
}

// Stderr returns the non-protocol stderr accumulated so far.
func (p *protocolHandler) Stderr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realStderr.String()
}
