// Copyright 2026 The FGP Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/fgp-foundation/fgp/lib/client"
	"github.com/fgp-foundation/fgp/lib/config"
	"github.com/fgp-foundation/fgp/lib/service"
	"github.com/fgp-foundation/fgp/lib/supervisor"
	"github.com/fgp-foundation/fgp/lib/version"
)

// callTimeout bounds one daemon call made on behalf of a tools/call.
const callTimeout = 30 * time.Second

// Server bridges MCP tool traffic onto daemon sockets. Each daemon
// method becomes one tool named <daemon>_<method> with dots replaced
// by underscores.
type Server struct {
	cfg     config.Config
	daemons []string
	logger  *slog.Logger

	// clients caches one connection per daemon. A failed call evicts
	// the entry so the next call redials.
	clients map[string]*client.Client

	// bindings maps tool names back to the daemon and wire method
	// they stand for. Rebuilt on every tools/list.
	bindings map[string]binding

	initialized bool
}

// binding ties a tool name to its daemon and wire method.
type binding struct {
	daemon      string
	method      string
	description string
	params      []service.ParamInfo
}

// NewServer creates a bridge over the given daemons. An empty list
// means every installed daemon found in the services directory.
func NewServer(cfg config.Config, daemons []string, logger *slog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		daemons:  daemons,
		logger:   logger,
		clients:  make(map[string]*client.Client),
		bindings: make(map[string]binding),
	}
}

// Run processes newline-delimited JSON-RPC 2.0 from input until EOF.
func (s *Server) Run(input io.Reader, output io.Writer) error {
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	encoder := json.NewEncoder(output)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			if writeErr := writeError(encoder, json.RawMessage("null"), codeParseError, "parse error: "+err.Error()); writeErr != nil {
				return fmt.Errorf("writing parse error response: %w", writeErr)
			}
			continue
		}

		if req.JSONRPC != "2.0" {
			if !req.isNotification() {
				if writeErr := writeError(encoder, req.ID, codeInvalidRequest, "unsupported JSON-RPC version"); writeErr != nil {
					return fmt.Errorf("writing version error response: %w", writeErr)
				}
			}
			continue
		}

		if req.isNotification() {
			continue
		}

		if err := s.dispatch(encoder, &req); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(encoder *json.Encoder, req *request) error {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(encoder, req)
	case "ping":
		return writeResult(encoder, req.ID, map[string]any{})
	case "tools/list":
		if !s.initialized {
			return writeError(encoder, req.ID, codeInvalidRequest, "server not initialized (call initialize first)")
		}
		return s.handleToolsList(encoder, req)
	case "tools/call":
		if !s.initialized {
			return writeError(encoder, req.ID, codeInvalidRequest, "server not initialized (call initialize first)")
		}
		return s.handleToolsCall(encoder, req)
	default:
		return writeError(encoder, req.ID, codeMethodNotFound, "unknown method: "+req.Method)
	}
}

func (s *Server) handleInitialize(encoder *json.Encoder, req *request) error {
	if len(req.Params) == 0 {
		return writeError(encoder, req.ID, codeInvalidParams, "params required for initialize")
	}
	var params initializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return writeError(encoder, req.ID, codeInvalidParams, "invalid initialize params: "+err.Error())
	}

	s.initialized = true
	return writeResult(encoder, req.ID, initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    serverCapabilities{Tools: &toolCapability{}},
		ServerInfo:      serverInfo{Name: "fgp", Version: version.Short()},
	})
}

func (s *Server) handleToolsList(encoder *json.Encoder, req *request) error {
	s.refreshBindings(context.Background())

	names := make([]string, 0, len(s.bindings))
	for name := range s.bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	descriptions := make([]toolDescription, 0, len(names))
	for _, name := range names {
		bound := s.bindings[name]
		descriptions = append(descriptions, toolDescription{
			Name:        name,
			Description: bound.description,
			InputSchema: schemaFromParams(bound.params),
		})
	}
	return writeResult(encoder, req.ID, toolsListResult{Tools: descriptions})
}

func (s *Server) handleToolsCall(encoder *json.Encoder, req *request) error {
	if len(req.Params) == 0 {
		return writeError(encoder, req.ID, codeInvalidParams, "params required for tools/call")
	}
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return writeError(encoder, req.ID, codeInvalidParams, "invalid tools/call params: "+err.Error())
	}

	bound, ok := s.bindings[params.Name]
	if !ok {
		// The client may call without a preceding tools/list, or the
		// daemon may have restarted with new methods. Rebuild once
		// before giving up.
		s.refreshBindings(context.Background())
		if bound, ok = s.bindings[params.Name]; !ok {
			return writeError(encoder, req.ID, codeInvalidParams, "unknown tool: "+params.Name)
		}
	}

	var arguments map[string]any
	if len(params.Arguments) > 0 && string(params.Arguments) != "null" {
		if err := json.Unmarshal(params.Arguments, &arguments); err != nil {
			return writeError(encoder, req.ID, codeInvalidParams, "invalid arguments: "+err.Error())
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	result, callErr := s.callDaemon(ctx, bound.daemon, bound.method, arguments)
	if callErr != nil {
		// All daemon-side failures surface as tool errors, never as
		// JSON-RPC transport errors.
		return writeResult(encoder, req.ID, toolsCallResult{
			IsError: true,
			Content: []contentBlock{{Type: "text", Text: callErr.Error()}},
		})
	}
	return writeResult(encoder, req.ID, toolsCallResult{
		Content: []contentBlock{{Type: "text", Text: string(result)}},
	})
}

// callDaemon issues one call on the cached connection, evicting it on
// connection-level failure so the next call redials.
func (s *Server) callDaemon(ctx context.Context, daemonName, method string, arguments map[string]any) (json.RawMessage, error) {
	c, err := s.clientFor(daemonName)
	if err != nil {
		return nil, err
	}

	result, err := c.Call(ctx, method, arguments)
	if err != nil {
		var callErr *client.CallError
		if !errors.As(err, &callErr) {
			s.evict(daemonName)
		}
		return nil, err
	}
	return result, nil
}

func (s *Server) clientFor(daemonName string) (*client.Client, error) {
	if c, ok := s.clients[daemonName]; ok {
		return c, nil
	}
	c, err := client.Connect(s.cfg.SocketPath(daemonName), client.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	s.clients[daemonName] = c
	return c, nil
}

func (s *Server) evict(daemonName string) {
	if c, ok := s.clients[daemonName]; ok {
		c.Close()
		delete(s.clients, daemonName)
	}
}

// refreshBindings rebuilds the tool catalog by asking each daemon for
// its methods. Daemons that do not answer are skipped with a warning;
// the bridge stays usable for the rest.
func (s *Server) refreshBindings(ctx context.Context) {
	daemons := s.daemons
	if len(daemons) == 0 {
		installed, err := supervisor.New(s.cfg).List()
		if err != nil {
			s.logger.Warn("listing installed daemons", "error", err)
			return
		}
		daemons = installed
	}

	bindings := make(map[string]binding)
	for _, daemonName := range daemons {
		c, err := s.clientFor(daemonName)
		if err != nil {
			s.logger.Warn("daemon unreachable, skipping", "daemon", daemonName, "error", err)
			continue
		}

		listCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		listing, err := c.Methods(listCtx)
		cancel()
		if err != nil {
			s.logger.Warn("listing methods failed, skipping", "daemon", daemonName, "error", err)
			s.evict(daemonName)
			continue
		}

		for _, method := range listing.Methods {
			name := toolName(daemonName, method.Name)
			bindings[name] = binding{
				daemon:      daemonName,
				method:      method.Name,
				description: method.Description,
				params:      method.Params,
			}
		}
	}
	s.bindings = bindings
}

// toolName maps a daemon and wire method to an MCP tool identifier:
// dots become underscores, and the daemon name is prefixed unless the
// method already carries it.
func toolName(daemonName, method string) string {
	flattened := strings.ReplaceAll(method, ".", "_")
	prefix := daemonName + "_"
	if strings.HasPrefix(flattened, prefix) {
		return flattened
	}
	return prefix + flattened
}

// schemaFromParams derives a JSON Schema object from a method's
// declared parameters so MCP clients can validate arguments up front.
func schemaFromParams(params []service.ParamInfo) map[string]any {
	properties := make(map[string]any, len(params))
	var required []string
	for _, param := range params {
		property := map[string]any{"type": schemaType(param.Type)}
		if param.Description != "" {
			property["description"] = param.Description
		}
		properties[param.Name] = property
		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// schemaType normalizes a declared parameter type to a JSON Schema
// type keyword.
func schemaType(declared string) string {
	switch declared {
	case "int", "integer":
		return "integer"
	case "float", "number":
		return "number"
	case "bool", "boolean":
		return "boolean"
	case "object", "array", "string":
		return declared
	default:
		return "string"
	}
}

// writeResult sends a JSON-RPC 2.0 success response.
func writeResult(encoder *json.Encoder, id json.RawMessage, result any) error {
	return encoder.Encode(response{JSONRPC: "2.0", ID: id, Result: result})
}

// writeError sends a JSON-RPC 2.0 error response.
func writeError(encoder *json.Encoder, id json.RawMessage, code int, message string) error {
	return encoder.Encode(response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}
