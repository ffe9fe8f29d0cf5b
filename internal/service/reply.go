package service

import openai "github.com/sashabaranov/go-openai"

// ExtractReply returns the text of the first assistant message in the given
// order (upstream lists most recent first). Only the first non-empty text
// block of that message is used. It returns "" when there is none.
func ExtractReply(messages []openai.Message) string {
	for _, msg := range messages {
		if msg.Role != openai.ChatMessageRoleAssistant {
			continue
		}
		for _, content := range msg.Content {
			if content.Type == "text" && content.Text != nil && content.Text.Value != "" {
				return content.Text.Value
			}
		}
		return ""
	}
	return ""
}
