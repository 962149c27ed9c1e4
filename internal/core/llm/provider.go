// Package llm provides chat completion providers used to polish the digest,
// write item synopses and draft the Predicted Impacts section.
package llm

import "context"

// ProviderName identifies an LLM provider.
type ProviderName string

// Supported providers.
const (
	ProviderOpenAI ProviderName = "openai"
	ProviderLocal  ProviderName = "local"
)

// Provider priorities. Higher values are tried first.
const (
	PriorityPrimary  = 100
	PriorityFallback = 0
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Task labels requests in metrics and logs.
type Task string

// Known tasks.
const (
	TaskReformat  Task = "reformat"
	TaskSummarize Task = "summarize"
	TaskImpacts   Task = "impacts"
)

// Provider is a chat completion backend.
type Provider interface {
	Name() ProviderName
	Model() string
	IsAvailable() bool
	Priority() int
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Client is the interface used by the digest renderer.
type Client interface {
	Chat(ctx context.Context, task Task, messages []Message) (string, error)
}
