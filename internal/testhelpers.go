package internal

// CreateTestMessage builds a plain-text message for testing
func CreateTestMessage(role, text string) *Message {
	return &Message{
		Role:    role,
		Content: []ContentPart{{Text: text}},
	}
}
