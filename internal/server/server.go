package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/feature-match-detector/internal/detection"
	"github.com/ironsheep/feature-match-detector/internal/imaging"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeExecution      = -32000
)

// maxLineSize bounds one request line; base64 frames make lines large.
const maxLineSize = 32 * 1024 * 1024

// Server answers detection requests for one Detector.
type Server struct {
	detector *detection.Detector
	cache    *imaging.ImageCache
	log      logrus.FieldLogger
	now      func() time.Time
}

// Request is an incoming JSON-RPC request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an outgoing JSON-RPC response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a server for d. A nil logger discards output.
func New(d *detection.Detector, log logrus.FieldLogger) *Server {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Server{
		detector: d,
		cache:    imaging.NewImageCache(),
		log:      log,
		now:      time.Now,
	}
}

// Run reads one request per line from r and writes one response per line to
// w until r is exhausted or ctx is cancelled. Requests are handled in order.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLineSize)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.WithError(err).Warn("failed to parse request")
			if err := encoder.Encode(s.errorResponse(nil, CodeParseError, "Parse error", err.Error())); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

// handleRequest routes requests to the method handlers.
func (s *Server) handleRequest(ctx context.Context, req *Request) *Response {
	log := s.log.WithFields(logrus.Fields{"method": req.Method, "id": req.ID})
	log.Debug("request")

	var (
		result interface{}
		rpcErr *RPCError
	)
	switch req.Method {
	case "ping":
		result = map[string]interface{}{}
	case "methods":
		result = MethodDefinitions()
	case "status":
		result = s.handleStatus()
	case "detect":
		result, rpcErr = s.handleDetect(ctx, req.Params)
	case "do_command":
		result, rpcErr = s.handleDoCommand(ctx, req.Params)
	default:
		rpcErr = &RPCError{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		}
	}

	if rpcErr != nil {
		log.WithFields(logrus.Fields{"code": rpcErr.Code, "data": rpcErr.Data}).Warn(rpcErr.Message)
		return &Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &RPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

func invalidParams(err error) *RPCError {
	return &RPCError{Code: CodeInvalidParams, Message: "Invalid params", Data: err.Error()}
}

func executionFailed(message string, err error) *RPCError {
	return &RPCError{Code: CodeExecution, Message: message, Data: err.Error()}
}
