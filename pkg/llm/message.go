package llm

// Message represents a single message in a conversation.
//
// Content is usually a string, but OpenAI-compatible multimodal messages carry
// a list of ContentPart values instead, so it is kept untyped and forwarded as-is.
type Message struct {
	Role    string   `json:"role"`             // "system", "user", "assistant"
	Content any      `json:"content"`          // string or []ContentPart
	Images  []string `json:"images,omitempty"` // Optional base64-encoded images (native chat API)
}

// ContentPart is one element of a multimodal OpenAI-compatible message.
type ContentPart struct {
	Type  string `json:"type"`            // "input_text" or "input_image"
	Text  string `json:"text,omitempty"`  // Set for input_text
	Image string `json:"image,omitempty"` // Data URI, set for input_image
}

const (
	PartInputText  = "input_text"
	PartInputImage = "input_image"
)
