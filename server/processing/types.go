// Package processing turns a chat request into a prompt, sends it to the
// inference provider and shapes the reply for the HTTP layer.
package processing

// ChatRequest is the decoded body of POST /chat. Both fields are required on
// the wire but may be empty strings.
type ChatRequest struct {
	Language     string `json:"language"`
	FreeformText string `json:"freeform_text"`
}

// ChatResponse is the successful reply body.
type ChatResponse struct {
	Response string `json:"response"`
}
