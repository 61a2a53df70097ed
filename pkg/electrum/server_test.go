package electrum

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
)

// handlerFunc answers one request: either a result or an error value that
// is sent verbatim as the JSON-RPC error member.
type handlerFunc func(params []jsoniter.RawMessage) (result interface{}, rpcErr interface{})

// fakeServer is an in-process newline-delimited JSON-RPC server speaking
// enough of the Electrum protocol for the client.
type fakeServer struct {
	listener net.Listener
	mu       sync.Mutex
	handlers map[string]handlerFunc
	calls    map[string]*atomic.Int32
	wg       sync.WaitGroup
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeServer{
		listener: l,
		handlers: map[string]handlerFunc{},
		calls:    map[string]*atomic.Int32{},
	}

	s.handle(methodServerVersion, func([]jsoniter.RawMessage) (interface{}, interface{}) {
		return []string{"FakeElectrum 1.0", "1.4"}, nil
	})

	s.wg.Add(1)
	go s.serve()

	t.Cleanup(func() {
		_ = l.Close()
		s.wg.Wait()
	})

	return s
}

func (s *fakeServer) URL() string {
	return "tcp://" + s.listener.Addr().String()
}

func (s *fakeServer) handle(method string, h handlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
	if _, ok := s.calls[method]; !ok {
		s.calls[method] = &atomic.Int32{}
	}
}

func (s *fakeServer) callCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.calls[method]; ok {
		return int(c.Load())
	}
	return 0
}

func (s *fakeServer) serve() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.serveConn(conn)
		}()
	}
}

func (s *fakeServer) serveConn(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)

	for scanner.Scan() {
		var req struct {
			ID     uint64                `json:"id"`
			Method string                `json:"method"`
			Params []jsoniter.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			return
		}

		s.mu.Lock()
		h, ok := s.handlers[req.Method]
		if c, found := s.calls[req.Method]; found {
			c.Add(1)
		}
		s.mu.Unlock()

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if !ok {
			resp["error"] = map[string]interface{}{"code": -32601, "message": "unknown method " + req.Method}
		} else {
			result, rpcErr := h(req.Params)
			if rpcErr != nil {
				resp["error"] = rpcErr
			} else {
				resp["result"] = result
			}
		}

		out, err := json.Marshal(resp)
		if err != nil {
			return
		}
		if _, err := conn.Write(append(out, '\n')); err != nil {
			return
		}
	}
}

// deadEndpoint returns an address nothing listens on.
func deadEndpoint(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return "tcp://" + addr
}
