package analysis

import "github.com/sells-group/classifieds-cli/internal/model"

// SeedHistory is the history after a successful analysis: the prompt as
// the user turn and the reply as the model turn.
func SeedHistory(prompt, reply string) []model.ChatMessage {
	return []model.ChatMessage{model.UserMessage(prompt), model.ModelMessage(reply)}
}

// AppendQuestion returns a copy of prior with question appended.
func AppendQuestion(prior []model.ChatMessage, question string) []model.ChatMessage {
	out := make([]model.ChatMessage, len(prior), len(prior)+2)
	copy(out, prior)
	return append(out, model.UserMessage(question))
}

// AppendTurn returns a copy of prior extended by one question/answer pair.
func AppendTurn(prior []model.ChatMessage, question, answer string) []model.ChatMessage {
	return append(AppendQuestion(prior, question), model.ModelMessage(answer))
}

// ResolveHistory picks the conversation to continue: the stored chat wins,
// then the seed of a successful analysis, else an empty history.
func ResolveHistory(chat *model.ChatRecord, analysis *model.AnalysisRecord) []model.ChatMessage {
	switch {
	case chat != nil:
		return clone(chat.ChatHistory)
	case analysis != nil && analysis.Success:
		return clone(analysis.ChatHistory)
	default:
		return []model.ChatMessage{}
	}
}

func clone(h []model.ChatMessage) []model.ChatMessage {
	out := make([]model.ChatMessage, len(h))
	copy(out, h)
	return out
}
