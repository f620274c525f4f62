package adapter

// Options tunes a single generation call. Zero values use provider defaults.
type Options struct {
	MaxTokens   int64    `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	System      string   `json:"system,omitempty"`
}

// DefaultMaxTokens is used when Options.MaxTokens is zero.
const DefaultMaxTokens int64 = 4096

func (o Options) maxTokens() int64 {
	if o.MaxTokens > 0 {
		return o.MaxTokens
	}
	return DefaultMaxTokens
}

// Usage captures normalized token usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Normalize fills TotalTokens when a provider omits it.
func (u Usage) Normalize() Usage {
	if u.TotalTokens == 0 && (u.PromptTokens > 0 || u.CompletionTokens > 0) {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

// Add returns the field-wise sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// Cost captures normalized cost estimates.
type Cost struct {
	Currency     string  `json:"currency"`
	Amount       float64 `json:"amount"`
	IsEstimate   bool    `json:"is_estimate"`
	PricingModel string  `json:"pricing_model,omitempty"`
}

// CallReport captures one invocation attempt.
type CallReport struct {
	Adapter      string    `json:"adapter"`
	Model        string    `json:"model"`
	Usage        Usage     `json:"usage"`
	Cost         Cost      `json:"cost"`
	Retries      int       `json:"retries"`
	FallbackUsed bool      `json:"fallback_used"`
	DurationMs   int64     `json:"duration_ms"`
	ErrorCode    ErrorCode `json:"error_code,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Response is the output of a generation call.
type Response struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Usage    *Usage            `json:"usage,omitempty"`
}
