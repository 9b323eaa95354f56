package repl

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/deskmate-io/deskmate/internal/config"
)

// MaxConversationIterations prevents infinite loops in tool-use conversations
const MaxConversationIterations = 10

// ConversationHandler handles AI conversations
type ConversationHandler struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	history   []anthropic.MessageParam
	services  Services
	log       *logrus.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(services Services, chat config.ChatConfig, log *logrus.Logger) (*ConversationHandler, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &ConversationHandler{
		client:    &client,
		model:     chat.Model,
		maxTokens: int64(chat.MaxTokens),
		history:   make([]anthropic.MessageParam, 0),
		services:  services,
		log:       log,
	}, nil
}

// SendMessage sends a user message and gets AI response
func (c *ConversationHandler) SendMessage(ctx context.Context, userMessage string) (string, error) {
	// If this is the first message, prepend system context
	var fullMessage string
	if len(c.history) == 0 {
		fullMessage = c.systemPrompt() + "\n\n---\n\nUser: " + userMessage
	} else {
		fullMessage = userMessage
	}

	c.history = append(c.history, anthropic.NewUserMessage(
		anthropic.NewTextBlock(fullMessage),
	))

	// Conversation loop to handle tool use
	for iteration := 0; iteration < MaxConversationIterations; iteration++ {
		response, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: c.maxTokens,
			Messages:  c.history,
			Tools:     c.getTools(),
		})

		if err != nil {
			return "", fmt.Errorf("API call failed: %w", err)
		}

		if response.StopReason == "end_turn" {
			// Normal text response - extract and return
			var responseText string
			for _, block := range response.Content {
				if block.Type == "text" {
					responseText += block.Text
				}
			}

			c.history = append(c.history, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(responseText),
			))

			return responseText, nil
		}

		if response.StopReason == "tool_use" {
			// Add assistant's response to history (includes tool use blocks)
			c.history = append(c.history, response.ToParam())

			var toolResults []anthropic.ContentBlockParamUnion

			for _, block := range response.Content {
				variant := block.AsAny()
				if toolUse, ok := variant.(anthropic.ToolUseBlock); ok {
					result, err := c.executeTool(ctx, toolUse.Name, toolUse.Input)
					if err != nil {
						c.log.WithFields(logrus.Fields{
							"tool":  toolUse.Name,
							"error": err,
						}).Warn("assistant tool call failed")
						toolResults = append(toolResults, anthropic.NewToolResultBlock(toolUse.ID, fmt.Sprintf("Error: %v", err), true))
					} else {
						c.log.WithField("tool", toolUse.Name).Debug("assistant tool call succeeded")
						toolResults = append(toolResults, anthropic.NewToolResultBlock(toolUse.ID, result, false))
					}
				}
			}

			// Tool results go back as a user message
			c.history = append(c.history, anthropic.NewUserMessage(toolResults...))

			// Continue loop to get final response
		} else {
			return "", fmt.Errorf("unexpected stop reason: %s", response.StopReason)
		}
	}

	return "", fmt.Errorf("conversation exceeded maximum iterations (%d)", MaxConversationIterations)
}

// ClearHistory clears the conversation history
func (c *ConversationHandler) ClearHistory() {
	c.history = make([]anthropic.MessageParam, 0)
}

// processNaturalLanguage routes free-form input through the assistant
func (r *REPL) processNaturalLanguage(input string) error {
	if r.conversation == nil {
		handler, err := NewConversationHandler(r.services, r.chat, r.log)
		if err != nil {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s The assistant requires the ANTHROPIC_API_KEY environment variable.\n", yellow("Note:"))
			fmt.Println("Set your API key and restart the shell, or use the direct commands (see 'help').")
			fmt.Println()
			return nil
		}
		r.conversation = handler
	}

	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Printf("%s\n", gray("Thinking..."))

	response, err := r.conversation.SendMessage(r.ctx, input)
	if err != nil {
		return fmt.Errorf("assistant conversation failed: %w", err)
	}

	fmt.Println()
	fmt.Println(response)
	fmt.Println()

	return nil
}
