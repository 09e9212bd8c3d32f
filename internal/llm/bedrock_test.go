package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = in
	return f.out, f.err
}

func converseOutput(blocks ...brtypes.ContentBlock) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: blocks,
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(5), TotalTokens: aws.Int32(15)},
	}
}

var pricingTool = ToolDefinition{
	Name:        "get_pricing",
	Description: "Price a stay",
	Parameters:  map[string]any{"type": "object", "properties": map[string]any{"hotel": map[string]any{"type": "string"}}},
}

func TestBedrockCompleteText(t *testing.T) {
	api := &fakeConverse{out: converseOutput(&brtypes.ContentBlockMemberText{Value: " Hello! "})}
	client := NewBedrockClient(api)

	resp, err := client.Complete(context.Background(), Request{
		Model:       "model-1",
		System:      []string{"You are a concierge.", " "},
		Messages:    []Message{{Role: RoleUser, Content: "hi"}},
		MaxTokens:   256,
		Temperature: 0.2,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", resp.Text)
	assert.Equal(t, int32(15), resp.Usage.TotalTokens)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Len(t, api.input.System, 1)
	assert.Nil(t, api.input.ToolConfig)
	assert.Equal(t, int32(256), aws.ToInt32(api.input.InferenceConfig.MaxTokens))
}

func TestBedrockCompleteRequiresModel(t *testing.T) {
	_, err := NewBedrockClient(&fakeConverse{}).Complete(context.Background(), Request{})
	assert.Error(t, err)
}

func TestBedrockToolUseRoundTrip(t *testing.T) {
	api := &fakeConverse{out: converseOutput(&brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
		ToolUseId: aws.String("tu-1"),
		Name:      aws.String("get_pricing"),
		Input:     document.NewLazyDocument(map[string]any{"hotel": "h1"}),
	}})}
	client := NewBedrockClient(api)

	resp, err := client.Complete(context.Background(), Request{
		Model:      "model-1",
		Messages:   []Message{{Role: RoleUser, Content: "price please"}},
		Tools:      []ToolDefinition{pricingTool},
		ToolChoice: ToolChoiceAuto,
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "tu-1", resp.ToolCalls[0].ID)
	assert.Equal(t, "get_pricing", resp.ToolCalls[0].Name)

	var args map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.ToolCalls[0].Arguments), &args))
	assert.Equal(t, "h1", args["hotel"])

	require.NotNil(t, api.input.ToolConfig)
	assert.Len(t, api.input.ToolConfig.Tools, 1)
	assert.IsType(t, &brtypes.ToolChoiceMemberAuto{}, api.input.ToolConfig.ToolChoice)
}

func TestBedrockToolChoiceNoneKeepsSpecsAndDropsCalls(t *testing.T) {
	api := &fakeConverse{out: converseOutput(
		&brtypes.ContentBlockMemberText{Value: "Rooms start at $120."},
		&brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{ToolUseId: aws.String("tu-2"), Name: aws.String("get_pricing")}},
	)}
	client := NewBedrockClient(api)

	resp, err := client.Complete(context.Background(), Request{
		Model: "model-1",
		Messages: []Message{
			{Role: RoleUser, Content: "price please"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "tu-1", Name: "get_pricing", Arguments: `{"hotel":"h1"}`}}},
			{Role: RoleTool, ToolCallID: "tu-1", Content: `{"ok":true}`},
		},
		Tools:      []ToolDefinition{pricingTool},
		ToolChoice: ToolChoiceNone,
	})
	require.NoError(t, err)
	assert.Equal(t, "Rooms start at $120.", resp.Text)
	assert.Empty(t, resp.ToolCalls)
	require.NotNil(t, api.input.ToolConfig)
	assert.Nil(t, api.input.ToolConfig.ToolChoice)
}

func TestBedrockMessageMapping(t *testing.T) {
	api := &fakeConverse{out: converseOutput(&brtypes.ContentBlockMemberText{Value: "done"})}
	client := NewBedrockClient(api)

	_, err := client.Complete(context.Background(), Request{
		Model: "model-1",
		Messages: []Message{
			{Role: RoleAssistant, Content: "Hi, I'm Lucia."},
			{Role: RoleUser, Content: "book two rooms"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{
				{ID: "a", Name: "get_pricing", Arguments: "not json"},
				{ID: "b", Name: "find_reservation", Arguments: `{"code":"HX42"}`},
			}},
			{Role: RoleTool, ToolCallID: "a", Content: `{"ok":false}`},
			{Role: RoleTool, ToolCallID: "b", Content: `{"ok":true}`},
		},
		Tools:      []ToolDefinition{pricingTool},
		ToolChoice: ToolChoiceNone,
	})
	require.NoError(t, err)

	msgs := api.input.Messages
	require.Len(t, msgs, 5)
	assert.Equal(t, brtypes.ConversationRoleUser, msgs[0].Role, "transcript must open with a user turn")
	assert.Equal(t, brtypes.ConversationRoleAssistant, msgs[1].Role)
	assert.Equal(t, brtypes.ConversationRoleUser, msgs[2].Role)
	assert.Equal(t, brtypes.ConversationRoleAssistant, msgs[3].Role)
	require.Len(t, msgs[3].Content, 2)
	use, ok := msgs[3].Content[0].(*brtypes.ContentBlockMemberToolUse)
	require.True(t, ok)
	raw, err := use.Value.Input.MarshalSmithyDocument()
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw), "malformed arguments become an empty object")

	assert.Equal(t, brtypes.ConversationRoleUser, msgs[4].Role)
	require.Len(t, msgs[4].Content, 2, "tool results are grouped into one user message")
	_, ok = msgs[4].Content[1].(*brtypes.ContentBlockMemberToolResult)
	assert.True(t, ok)
}

func TestBedrockEmptyOutput(t *testing.T) {
	api := &fakeConverse{out: converseOutput(&brtypes.ContentBlockMemberText{Value: "  "})}
	_, err := NewBedrockClient(api).Complete(context.Background(), Request{Model: "m", Messages: []Message{{Role: RoleUser, Content: "x"}}})
	assert.Error(t, err)
}
