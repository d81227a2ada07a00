package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hyperjump/genomesearch/internal/auth"
	"github.com/hyperjump/genomesearch/internal/jsonrpc"
	"github.com/hyperjump/genomesearch/internal/models"
	"go.uber.org/zap"
)

// ServiceName prefixes every JSON-RPC method.
const ServiceName = "GenomeSearchUtil"

type rpcMethod func(ctx context.Context, req *jsonrpc.Request) (interface{}, error)

func (s *Server) methods() map[string]rpcMethod {
	return map[string]rpcMethod{
		ServiceName + ".search": func(ctx context.Context, req *jsonrpc.Request) (interface{}, error) {
			var p models.SearchParams
			if err := decodeParams(req, &p); err != nil {
				return nil, err
			}
			return s.engine.Search(ctx, &p)
		},
		ServiceName + ".search_region": func(ctx context.Context, req *jsonrpc.Request) (interface{}, error) {
			var p models.SearchRegionParams
			if err := decodeParams(req, &p); err != nil {
				return nil, err
			}
			return s.engine.SearchRegion(ctx, &p)
		},
		ServiceName + ".search_contigs": func(ctx context.Context, req *jsonrpc.Request) (interface{}, error) {
			var p models.SearchContigsParams
			if err := decodeParams(req, &p); err != nil {
				return nil, err
			}
			return s.engine.SearchContigs(ctx, &p)
		},
		ServiceName + ".status": func(ctx context.Context, _ *jsonrpc.Request) (interface{}, error) {
			return s.engine.Status(ctx)
		},
	}
}

func decodeParams(req *jsonrpc.Request, dst interface{}) error {
	if err := req.FirstParam(dst); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidParams, err)
	}
	return nil
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req jsonrpc.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeRPC(w, http.StatusInternalServerError, &jsonrpc.Response{
			Version: jsonrpc.Version,
			Error:   jsonrpc.NewError(jsonrpc.CodeParseError, "parse error: "+err.Error()),
		})
		return
	}
	method, ok := s.methods()[req.Method]
	if !ok {
		s.writeRPC(w, http.StatusInternalServerError, &jsonrpc.Response{
			Version: jsonrpc.Version,
			ID:      req.ID,
			Error:   jsonrpc.NewError(jsonrpc.CodeMethodNotFound, "unknown method "+req.Method),
		})
		return
	}
	s.logger.Debug("rpc call", zap.String("method", req.Method), zap.String("id", req.ID))

	result, err := method(r.Context(), &req)
	if err != nil {
		s.logFailure(req.Method, err)
		s.respondRPCError(w, req.ID, err)
		return
	}
	// results are a one-element list
	raw, err := json.Marshal([]interface{}{result})
	if err != nil {
		s.respondRPCError(w, req.ID, err)
		return
	}
	s.writeRPC(w, http.StatusOK, &jsonrpc.Response{Version: jsonrpc.Version, ID: req.ID, Result: raw})
}

// respondRPCError writes err as a platform error object.
func (s *Server) respondRPCError(w http.ResponseWriter, id string, err error) {
	rpcErr := jsonrpc.NewError(rpcCode(err), err.Error())
	rpcErr.Trace = err.Error()
	s.writeRPC(w, http.StatusInternalServerError, &jsonrpc.Response{Version: jsonrpc.Version, ID: id, Error: rpcErr})
}

func (s *Server) writeRPC(w http.ResponseWriter, status int, resp *jsonrpc.Response) {
	s.respondJSON(w, status, resp)
}

func rpcCode(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidParams):
		return jsonrpc.CodeInvalidParams
	case errors.Is(err, auth.ErrInvalidToken):
		return jsonrpc.CodeAuthError
	default:
		return jsonrpc.CodeServerError
	}
}
