package conversation

import "github.com/teslashibe/reachy-voice/pkg/inference"

// buildMessages assembles the request: system prompt with memory context,
// the capped history, then the new user message.
func (o *Orchestrator) buildMessages(memCtx, text string) []inference.Message {
	system := o.cfg.SystemPrompt
	if memCtx != "" {
		system += "\n\n" + memCtx
	}

	o.mu.Lock()
	msgs := make([]inference.Message, 0, len(o.history)+2)
	msgs = append(msgs, inference.NewSystemMessage(system))
	msgs = append(msgs, o.history...)
	o.mu.Unlock()

	return append(msgs, inference.NewUserMessage(text))
}

// appendHistory records a turn: the user message, any tool notes, then the
// reply when there is one.
func (o *Orchestrator) appendHistory(userText, reply string, notes ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = append(o.history, inference.NewUserMessage(userText))
	for _, n := range notes {
		o.history = append(o.history, inference.NewSystemMessage(n))
	}
	if reply != "" {
		o.history = append(o.history, inference.NewAssistantMessage(reply))
	}
	o.history = trimHistory(o.history, o.cfg.HistoryLimit)
}

// trimHistory caps history (system prompt not included) so that together
// with the system prompt it holds at most limit messages. Once over, the
// most recent limit-2 messages are kept.
func trimHistory(history []inference.Message, limit int) []inference.Message {
	if len(history)+1 <= limit {
		return history
	}
	keep := limit - 2
	return append([]inference.Message(nil), history[len(history)-keep:]...)
}
