// Package ollama provides a client for communicating with a local ollama LLM server.
// It supports the chat endpoint (rolling conversation context, streamed and
// collected into a single reply) and the generate endpoint (single prompt).
package ollama

// Default configuration constants
const (
	DefaultEndpoint = "http://localhost:11434"
	DefaultModel    = "llama3:latest"
	DefaultTimeout  = 60 // seconds
)

// API endpoints
const (
	EndpointTags     = "/api/tags"
	EndpointChat     = "/api/chat"
	EndpointGenerate = "/api/generate"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SystemPrompt restricts the assistant to travel in Thailand.
const SystemPrompt = `You are a friendly travel assistant for Thailand.

Only answer questions about travelling in Thailand: destinations, temples, islands,
food, transport, weather, visas, culture, etiquette and itineraries.

If the user asks about anything else, politely decline and remind them that you can
only help with travel in Thailand.

Keep answers concise. Use **bold** for place names. When you mention a web page or an
image, write the full URL.`

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"`    // "system", "user", or "assistant"
	Content string `json:"content"` // Message text
}

// ChatRequest represents a request to ollama's /api/chat endpoint.
type ChatRequest struct {
	Model    string    `json:"model"`    // Model name (e.g., "llama3:latest")
	Messages []Message `json:"messages"` // Conversation history
	Stream   bool      `json:"stream"`   // Whether to stream response
}

// ChatResponse represents a streaming response from ollama's /api/chat endpoint.
// Each line of the streaming response is a JSON object with these fields.
type ChatResponse struct {
	Model      string  `json:"model"`                 // Model that generated response
	CreatedAt  string  `json:"created_at"`            // Timestamp
	Message    Message `json:"message"`               // Response message (partial in stream)
	Done       bool    `json:"done"`                  // True if this is the final response
	DoneReason string  `json:"done_reason,omitempty"` // Reason for completion (e.g., "stop")
	Error      string  `json:"error,omitempty"`       // Set when ollama aborts mid-stream

	// Final response fields (only present when Done is true)
	TotalDuration int64 `json:"total_duration,omitempty"` // Total time in nanoseconds
	EvalCount     int   `json:"eval_count,omitempty"`     // Tokens generated
}

// GenerateRequest represents a non-streaming request to /api/generate.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

// GenerateResponse is the single JSON object returned by /api/generate
// when streaming is disabled.
type GenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// TagsResponse represents the response from ollama's /api/tags endpoint.
// Used to verify ollama is running and check available models.
type TagsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ModelInfo represents information about an available model.
type ModelInfo struct {
	Name       string `json:"name"`        // Model name (e.g., "llama3:latest")
	ModifiedAt string `json:"modified_at"` // Last modification time
	Size       int64  `json:"size"`        // Model size in bytes
}
