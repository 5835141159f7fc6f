package mcp

import (
	"slices"

	"github.com/mattt/weather-mcp/jsonrpc"
	"github.com/mattt/weather-mcp/registry"
)

// Wire methods
const (
	MethodInitialize     = "initialize"
	MethodInitialized    = "notifications/initialized"
	MethodPing           = "ping"
	MethodListOperations = "list_operations"
	MethodInvoke         = "invoke"
	MethodCancelled      = "notifications/cancelled"
	MethodShutdown       = "shutdown"

	// Aliases understood for compatibility with generic tool clients.
	MethodToolsList = "tools/list"
	MethodToolsCall = "tools/call"
)

// LatestVersion is the newest protocol version this package speaks.
const LatestVersion = "2025-06-18"

// SupportedVersions lists every protocol version accepted by initialize,
// oldest first.
var SupportedVersions = []string{"2024-11-05", "2025-03-26", LatestVersion}

// IsSupportedVersion reports whether v is one of SupportedVersions.
func IsSupportedVersion(v string) bool {
	return slices.Contains(SupportedVersions, v)
}

// Initialize
type (
	// Implementation identifies a client or server.
	Implementation struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}

	// ClientCapabilities represents the capabilities a client advertises
	ClientCapabilities struct {
		Experimental map[string]any `json:"experimental,omitempty"`
	}

	// OperationsCapability advertises catalog listing and invocation.
	OperationsCapability struct {
		List   bool `json:"list"`
		Invoke bool `json:"invoke"`
	}

	// ToolsCapability is the tool-client view of the same catalog.
	ToolsCapability struct {
		ListChanged bool `json:"listChanged"`
	}

	// ServerCapabilities represents the server's supported capabilities
	ServerCapabilities struct {
		Experimental map[string]any        `json:"experimental,omitempty"`
		Operations   *OperationsCapability `json:"operations,omitempty"`
		Tools        *ToolsCapability      `json:"tools,omitempty"`
	}

	// InitializeParams are sent by the client to start a session.
	InitializeParams struct {
		ProtocolVersion string             `json:"protocolVersion"`
		Capabilities    ClientCapabilities `json:"capabilities"`
		ClientInfo      Implementation     `json:"clientInfo"`
	}

	// InitializeResult represents the server's response to an initialize request
	InitializeResult struct {
		ProtocolVersion string             `json:"protocolVersion"`
		Capabilities    ServerCapabilities `json:"capabilities"`
		ServerInfo      Implementation     `json:"serverInfo"`
		Instructions    string             `json:"instructions,omitempty"`
	}
)

// Operations
type (
	// ListOperationsResult is the catalog in registration order.
	ListOperationsResult struct {
		Operations []registry.Descriptor `json:"operations"`
	}

	// InvokeParams names an operation and supplies its arguments.
	InvokeParams struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments,omitempty"`
	}
)

// CancelledParams identifies an in-flight request the client no longer
// wants answered.
type CancelledParams struct {
	RequestID jsonrpc.ID `json:"requestId"`
	Reason    string     `json:"reason,omitempty"`
}
