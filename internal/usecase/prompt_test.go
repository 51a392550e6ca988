package usecase

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"lead-engine/internal/domain"
)

func keyPtr(k domain.FieldKey) *domain.FieldKey { return &k }

func TestBuildPromptMessages_WindowsHistory(t *testing.T) {
	snap := domain.Snapshot{}
	for i := 1; i <= 5; i++ {
		role := domain.RoleUser
		if i%2 == 0 {
			role = domain.RoleAssistant
		}
		snap.Messages = append(snap.Messages, domain.Message{Seq: i, Role: role, Content: fmt.Sprintf("m%d", i)})
	}

	msgs := buildPromptMessages("Pinned", snap, 3)
	require.Len(t, msgs, 5)
	require.Equal(t, domain.ChatRoleSystem, msgs[0].Role)
	require.Equal(t, domain.ChatRoleSystem, msgs[1].Role)
	require.Equal(t, []domain.ChatMessage{
		{Role: domain.ChatRoleUser, Content: "m3"},
		{Role: domain.ChatRoleAssistant, Content: "m4"},
		{Role: domain.ChatRoleUser, Content: "m5"},
	}, msgs[2:])
}

func TestBuildPolicyPrompt_IncludesRules(t *testing.T) {
	content := buildPolicyPrompt("  Pinned prompt ")
	require.Contains(t, content, "Pinned prompt\n")
	require.Contains(t, content, "Role:")
	require.Contains(t, content, "Behavior Rules:")
	require.Contains(t, content, "Ask for at most one missing detail")
	require.Contains(t, content, "Output Contract:")
	require.Contains(t, content, "Return JSON only with keys in_scope")
}

func TestBuildLeadStatePrompt(t *testing.T) {
	empty := buildLeadStatePrompt(domain.Snapshot{
		MissingSlots: []string{"name", "email"},
		NextField:    keyPtr(domain.FieldName),
	})
	require.Contains(t, empty, "- nothing collected yet")
	require.Contains(t, empty, "Still missing: name, email.")
	require.Contains(t, empty, "Ask for the client's name next.")

	partial := buildLeadStatePrompt(domain.Snapshot{
		Fields: map[domain.FieldKey]domain.ExtractedField{
			domain.FieldPropertyAddress: {Key: domain.FieldPropertyAddress, Value: "12  Elm\nStreet"},
		},
		NextField: keyPtr(domain.FieldBuyingOrSelling),
	})
	require.Contains(t, partial, "- Property address: 12 Elm Street")
	require.Contains(t, partial, "Ask for the client's buying or selling next.")
	require.NotContains(t, partial, "nothing collected")

	complete := buildLeadStatePrompt(domain.Snapshot{
		Fields: map[domain.FieldKey]domain.ExtractedField{
			domain.FieldName: {Key: domain.FieldName, Value: "Jane Doe"},
		},
		ConversationComplete: true,
		NextField:            keyPtr(domain.FieldTimeline),
	})
	require.Contains(t, complete, "All required details are collected.")
	require.NotContains(t, complete, "Ask for")
}

func TestParseAssistantReply(t *testing.T) {
	out, err := parseAssistantReply(` {"in_scope":true,"reply":" hello "} `)
	require.NoError(t, err)
	require.True(t, out.InScope)
	require.Equal(t, "hello", out.Reply)

	out, err = parseAssistantReply(`{"in_scope":false,"reply":""}`)
	require.NoError(t, err)
	require.False(t, out.InScope)

	for _, raw := range []string{
		`{"in_scope":true,"reply":"  "}`,
		`not-json`,
		`{"in_scope":true,"reply":"wrapped","extra":true}`,
		`{"in_scope":true,"reply":"a"}{"in_scope":true,"reply":"b"}`,
	} {
		_, err := parseAssistantReply(raw)
		require.Error(t, err, raw)
	}
}
