package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/netsight-ai/netsight-engine/pkg/apperrors"
	"github.com/netsight-ai/netsight-engine/pkg/services"
)

// RegisterAskQuestionTool adds the ask_question tool, the main entry point
// for agents. Questions that match a verified query run it directly;
// everything else goes through guarded SQL generation. Results come back
// masked for the caller's role.
func RegisterAskQuestionTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"ask_question",
		mcp.WithDescription(
			"Answers a natural-language question about the WiFi fleet using the "+
				"semantic model. Returns the answer, the SQL that produced it, and the "+
				"result rows. Pass conversation_id from a previous response to ask "+
				"follow-up questions in the same conversation. Only tables in the "+
				"semantic model can be queried; sensitive columns are masked.",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question to answer (e.g. 'Which networks missed their SLA target yesterday?')"),
		),
		mcp.WithString(
			"conversation_id",
			mcp.Description("Conversation UUID from a previous ask_question response, for follow-ups"),
		),
		mcp.WithNumber(
			"limit",
			mcp.Description("Maximum rows to return (default: server row limit)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return nil, err
		}
		if trimString(question) == "" {
			return NewErrorResult("missing_question", "question must not be empty"), nil
		}

		askReq := services.AskRequest{Question: question}
		if raw := trimString(getOptionalString(req, "conversation_id")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return NewErrorResult("invalid_conversation_id",
					fmt.Sprintf("conversation_id %q is not a valid UUID", raw)), nil
			}
			askReq.ConversationID = &id
		}
		if limit, ok := getOptionalFloat(req, "limit"); ok {
			askReq.Limit = int(limit)
		}

		scopedCtx, cleanup, err := openScope(ctx, deps)
		if err != nil {
			return nil, err
		}
		defer cleanup()

		resp, err := deps.Analyst.Ask(scopedCtx, askReq)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrModelNotActive):
				return NewErrorResult("model_not_active",
					"No semantic model is active, so questions cannot be answered yet."), nil
			case errors.Is(err, apperrors.ErrLLMNotConfigured):
				return NewErrorResult("llm_not_configured", err.Error()), nil
			case errors.Is(err, apperrors.ErrQueryNotPermitted):
				return NewErrorResult("query_not_permitted", err.Error()), nil
			case errors.Is(err, apperrors.ErrNotFound):
				return NewErrorResult("conversation_not_found",
					"No conversation with that ID exists. Omit conversation_id to start a new one."), nil
			}
			if result := NewSQLErrorResult(err); result != nil {
				return result, nil
			}
			if IsInputError(err) {
				return NewErrorResult("invalid_request", err.Error()), nil
			}
			return nil, fmt.Errorf("failed to answer question: %w", err)
		}

		jsonResult, _ := json.Marshal(resp)
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}
