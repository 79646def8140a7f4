package gemini

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one role-tagged conversation turn.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type Content struct {
	Role  string  `json:"role,omitempty"`
	Parts []*Part `json:"parts"`
}

type Part struct {
	Text *string `json:"text,omitempty"`
}

type GenerateContentRequest struct {
	Contents []*Content `json:"contents"`
}

type GenerateContentResponse struct {
	Candidates []*Candidate `json:"candidates"`
}

type Candidate struct {
	Content      *Content `json:"content"`
	FinishReason string   `json:"finishReason,omitempty"`
}

// NewRequest converts conversation turns into the upstream payload shape.
func NewRequest(msgs []Message) *GenerateContentRequest {
	req := &GenerateContentRequest{Contents: make([]*Content, 0, len(msgs))}
	for _, m := range msgs {
		text := m.Text
		req.Contents = append(req.Contents, &Content{
			Role:  m.Role,
			Parts: []*Part{{Text: &text}},
		})
	}
	return req
}

// FirstText returns candidates[0].content.parts[0].text. ok is false when
// any segment of that path is missing.
func (r *GenerateContentResponse) FirstText() (text string, ok bool) {
	if r == nil || len(r.Candidates) == 0 {
		return "", false
	}
	c := r.Candidates[0]
	if c == nil || c.Content == nil || len(c.Content.Parts) == 0 {
		return "", false
	}
	p := c.Content.Parts[0]
	if p == nil || p.Text == nil {
		return "", false
	}
	return *p.Text, true
}

// ErrorResponse is the body Google APIs return on non-2xx responses.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}
