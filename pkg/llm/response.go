package llm

// Response is a decoded provider response. Providers answer with a JSON object
// whose shape depends on the backend; it is relayed to callers untouched.
type Response map[string]any
