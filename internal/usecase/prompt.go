package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"lead-engine/internal/domain"
)

type assistantReply struct {
	InScope bool   `json:"in_scope"`
	Reply   string `json:"reply"`
}

func buildPromptMessages(pinnedPrompt string, snap domain.Snapshot, maxContext int) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: domain.ChatRoleSystem, Content: buildPolicyPrompt(pinnedPrompt)},
		{Role: domain.ChatRoleSystem, Content: buildLeadStatePrompt(snap)},
	}

	history := snap.Messages
	if len(history) > maxContext {
		history = history[len(history)-maxContext:]
	}
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		role := domain.ChatRoleUser
		if m.Role == domain.RoleAssistant {
			role = domain.ChatRoleAssistant
		}
		messages = append(messages, domain.ChatMessage{Role: role, Content: content})
	}
	return messages
}

func buildPolicyPrompt(pinnedPrompt string) string {
	return strings.Join([]string{
		strings.TrimSpace(pinnedPrompt),
		"",
		"Role:",
		"You are the website assistant of a real estate agency, chatting with a prospective client.",
		"",
		"Task:",
		"Help the client with their buying or selling plans and collect their details along the way.",
		"If the latest message has nothing to do with real estate, return out of scope.",
		"",
		"Behavior Rules:",
		behaviorRules(),
		"",
		"Output Contract:",
		outputContract(),
	}, "\n")
}

// buildLeadStatePrompt tells the model what is already known about the lead
// and which detail to ask for next.
func buildLeadStatePrompt(snap domain.Snapshot) string {
	var b strings.Builder
	b.WriteString("Lead Record:\n")
	known := 0
	for _, key := range domain.FieldKeys {
		f, ok := snap.Fields[key]
		if !ok {
			continue
		}
		known++
		fmt.Fprintf(&b, "- %s: %s\n", key.Label(), normalizePromptInput(f.Value))
	}
	if known == 0 {
		b.WriteString("- nothing collected yet\n")
	}

	if snap.ConversationComplete {
		b.WriteString("\nAll required details are collected. Do not ask for more; offer to arrange a consultation.")
		return b.String()
	}
	if len(snap.MissingSlots) > 0 {
		fmt.Fprintf(&b, "\nStill missing: %s.", strings.Join(snap.MissingSlots, ", "))
	}
	if snap.NextField != nil {
		fmt.Fprintf(&b, "\nAsk for the client's %s next.", strings.ToLower(snap.NextField.Label()))
	}
	return b.String()
}

func behaviorRules() string {
	return strings.Join([]string{
		"1) Reply only to the latest client message in this request.",
		"2) Ask for at most one missing detail per reply, as a single question at the end.",
		"3) Never ask again for a detail listed in the lead record.",
		"4) Keep replies friendly, professional and under 80 words.",
		"5) Do not quote prices, valuations or legal advice; offer a consultation instead.",
	}, "\n")
}

func outputContract() string {
	return "Return JSON only with keys in_scope (boolean) and reply (string). " +
		"If out of scope, return in_scope=false and reply=\"\". " +
		"If in scope, return in_scope=true and provide the message for the client in reply."
}

func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

func parseAssistantReply(raw string) (assistantReply, error) {
	var out assistantReply
	dec := json.NewDecoder(bytes.NewBufferString(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return assistantReply{}, fmt.Errorf("usecase: decode assistant reply: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return assistantReply{}, errors.New("usecase: decode assistant reply: multiple JSON values")
		}
		return assistantReply{}, fmt.Errorf("usecase: decode assistant reply trailing data: %w", err)
	}
	out.Reply = strings.TrimSpace(out.Reply)
	if out.InScope && out.Reply == "" {
		return assistantReply{}, errors.New("usecase: assistant reply missing text for in-scope message")
	}
	return out, nil
}
