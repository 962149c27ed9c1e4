package llm

import "context"

// LocalProvider answers with the content of the last message.
type LocalProvider struct{}

// NewLocalProvider creates the echo provider.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

// Name returns the provider identifier.
func (p *LocalProvider) Name() ProviderName {
	return ProviderLocal
}

// Model returns the pseudo model name.
func (p *LocalProvider) Model() string {
	return "echo"
}

// IsAvailable always returns true.
func (p *LocalProvider) IsAvailable() bool {
	return true
}

// Priority returns the provider priority.
func (p *LocalProvider) Priority() int {
	return PriorityFallback
}

// Chat returns the last message content.
func (p *LocalProvider) Chat(_ context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", nil
	}

	return messages[len(messages)-1].Content, nil
}
