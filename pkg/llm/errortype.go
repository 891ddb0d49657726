package llm

// ErrorType classifies the category of an LLM client error.
type ErrorType string

const (
	ErrorTypeNone     ErrorType = ""
	ErrorTypeEndpoint ErrorType = "endpoint"
	ErrorTypeAuth     ErrorType = "auth"
	ErrorTypeModel    ErrorType = "model"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// ErrorTypeRateLimited marks a provider rate-limit rejection (HTTP 429).
const ErrorTypeRateLimited ErrorType = "rate_limited"

// GenerateResponseResult is the result of a GenerateResponse call.
type GenerateResponseResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
