// Package runtime executes built agent trees against LLM providers.
// Sub-agents are exposed to their parent as tools taking a single
// "input" string; a tool call runs the sub-agent's own chat loop and
// feeds its final answer back as the tool result.
package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/skillhub-ai/skillhub/internal/compose"
	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/agentkit/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxIterations bounds the chat loop of a single agent run.
const DefaultMaxIterations = 25

// EventType classifies streaming events.
type EventType string

const (
	EventMessage    EventType = "message"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventDone       EventType = "done"
	EventError      EventType = "error"
)

// Event is one streaming occurrence during an agent run.
type Event struct {
	Type    EventType `json:"type"`
	Agent   string    `json:"agent,omitempty"`
	Tool    string    `json:"tool,omitempty"`
	Content string    `json:"content,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Runner executes agent trees.
type Runner struct {
	factory       *ProviderFactory
	maxIterations int
	log           *logging.Logger
}

// NewRunner creates a runner over the given provider factory.
func NewRunner(factory *ProviderFactory) *Runner {
	return &Runner{
		factory:       factory,
		maxIterations: DefaultMaxIterations,
		log:           logging.New().WithComponent("runtime"),
	}
}

// Run executes agent with input appended after history and returns the
// final assistant message.
func (r *Runner) Run(ctx context.Context, agent *compose.Agent, input string, history []llm.Message) (string, error) {
	return r.run(ctx, agent, input, history, nil)
}

// RunStream executes agent like Run but emits events as the run
// progresses. The channel is closed after a terminal done or error
// event.
func (r *Runner) RunStream(ctx context.Context, agent *compose.Agent, input string, history []llm.Message) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		output, err := r.run(ctx, agent, input, history, events)
		if err != nil {
			emit(ctx, events, Event{Type: EventError, Agent: agent.Name, Error: err.Error()})
			return
		}
		emit(ctx, events, Event{Type: EventDone, Agent: agent.Name, Content: output})
	}()
	return events
}

func (r *Runner) run(ctx context.Context, agent *compose.Agent, input string, history []llm.Message, events chan<- Event) (string, error) {
	ctx, span := r.startAgentSpan(ctx, agent)
	defer span.End()

	provider, err := r.factory.Get(agent.Model)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: agent.Instructions})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: input})

	toolDefs := toolDefinitions(agent.Tools)

	for iteration := 0; iteration < r.maxIterations; iteration++ {
		resp, err := provider.Chat(ctx, llm.ChatRequest{
			Messages: messages,
			Tools:    toolDefs,
		})
		if err != nil {
			span.RecordError(err)
			return "", fmt.Errorf("LLM error for agent %q: %w", agent.Name, err)
		}

		if len(resp.ToolCalls) == 0 {
			if events != nil {
				emit(ctx, events, Event{Type: EventMessage, Agent: agent.Name, Content: resp.Content})
			}
			return resp.Content, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		toolMessages := r.dispatchTools(ctx, agent, resp.ToolCalls, events)
		messages = append(messages, toolMessages...)
	}

	err = fmt.Errorf("agent %q exceeded %d iterations", agent.Name, r.maxIterations)
	span.RecordError(err)
	return "", err
}

// dispatchTools runs the requested sub-agents concurrently and returns
// their results as tool messages in the original call order.
func (r *Runner) dispatchTools(ctx context.Context, agent *compose.Agent, calls []llm.ToolCallResponse, events chan<- Event) []llm.Message {
	results := make([]llm.Message, len(calls))

	var wg sync.WaitGroup
	for i, tc := range calls {
		wg.Add(1)
		go func(i int, tc llm.ToolCallResponse) {
			defer wg.Done()

			if events != nil {
				emit(ctx, events, Event{Type: EventToolCall, Agent: agent.Name, Tool: tc.Name})
			}

			content := r.callSubAgent(ctx, agent, tc)

			if events != nil {
				emit(ctx, events, Event{Type: EventToolResult, Agent: agent.Name, Tool: tc.Name, Content: content})
			}
			results[i] = llm.Message{
				Role:       "tool",
				ToolCallID: tc.ID,
				Content:    content,
			}
		}(i, tc)
	}
	wg.Wait()

	return results
}

func (r *Runner) callSubAgent(ctx context.Context, agent *compose.Agent, tc llm.ToolCallResponse) string {
	tool := findTool(agent.Tools, tc.Name)
	if tool == nil {
		r.log.Warn("unknown tool requested", map[string]interface{}{
			"agent": agent.Name,
			"tool":  tc.Name,
		})
		return fmt.Sprintf("Error: unknown tool %q", tc.Name)
	}

	input, _ := tc.Args["input"].(string)

	r.log.Info("invoking sub-agent", map[string]interface{}{
		"agent": agent.Name,
		"tool":  tc.Name,
		"sub":   tool.Agent.Name,
	})

	output, err := r.run(ctx, tool.Agent, input, nil, nil)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return output
}

func (r *Runner) startAgentSpan(ctx context.Context, agent *compose.Agent) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "agent.run")
	span.SetAttributes(
		attribute.String("agent.name", agent.Name),
		attribute.String("agent.model", agent.Model),
		attribute.Int("agent.tools", len(agent.Tools)),
	)
	return ctx, span
}

// toolDefinitions exposes sub-agents as single-input tools.
func toolDefinitions(tools []compose.Tool) []llm.ToolDef {
	var defs []llm.ToolDef
	for _, tool := range tools {
		defs = append(defs, llm.ToolDef{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"input": map[string]interface{}{
						"type":        "string",
						"description": "The task or question for this agent.",
					},
				},
				"required": []string{"input"},
			},
		})
	}
	return defs
}

func findTool(tools []compose.Tool, name string) *compose.Tool {
	for i := range tools {
		if tools[i].Name == name {
			return &tools[i]
		}
	}
	return nil
}

// emit delivers an event without blocking forever on an abandoned
// consumer.
func emit(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
