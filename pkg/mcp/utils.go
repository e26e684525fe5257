package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/unowned-ai/keep/pkg/db"
)

// requiredString returns a non-empty string argument or an error result.
func requiredString(request mcp.CallToolRequest, name string) (string, *mcp.CallToolResult) {
	v, ok := request.Params.Arguments[name].(string)
	if !ok || v == "" {
		return "", mcp.NewToolResultError(fmt.Sprintf("'%s' parameter is required and must be a non-empty string.", name))
	}
	return v, nil
}

// optionalString returns a string argument and whether it was supplied.
func optionalString(request mcp.CallToolRequest, name string) (*string, bool) {
	v, ok := request.Params.Arguments[name].(string)
	if !ok {
		return nil, false
	}
	return &v, true
}

// requiredID returns an item id. JSON numbers arrive as float64; numeric strings are accepted too.
func requiredID(request mcp.CallToolRequest, name string) (int64, *mcp.CallToolResult) {
	switch v := request.Params.Arguments[name].(type) {
	case float64:
		if v == math.Trunc(v) && v > 0 {
			return int64(v), nil
		}
	case string:
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, mcp.NewToolResultError(fmt.Sprintf("'%s' parameter is required and must be a positive integer.", name))
}

func boolArg(request mcp.CallToolRequest, name string, def bool) bool {
	if v, ok := request.Params.Arguments[name].(bool); ok {
		return v
	}
	return def
}

func intArg(request mcp.CallToolRequest, name string, def int) int {
	if v, ok := request.Params.Arguments[name].(float64); ok && v >= 0 {
		return int(v)
	}
	return def
}

// jsonResult serializes v as the tool's text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize result to JSON: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult reports a failed operation with its error class so the caller can react.
func errorResult(action string, err error) (*mcp.CallToolResult, error) {
	class := "internal"
	switch {
	case errors.Is(err, db.ErrValidation):
		class = "validation"
	case errors.Is(err, db.ErrNotFound):
		class = "not_found"
	case errors.Is(err, db.ErrReferentialIntegrity):
		class = "referential_integrity"
	case errors.Is(err, db.ErrUniqueness):
		class = "uniqueness"
	case errors.Is(err, db.ErrBusy):
		class = "busy"
	}
	return mcp.NewToolResultError(fmt.Sprintf("Failed to %s [%s]: %v", action, class, err)), nil
}
