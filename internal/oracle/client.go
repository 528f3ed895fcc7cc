// File: internal/oracle/client.go

// Package oracle talks to the decision model. It owns prompt construction
// and the decode boundary: whatever the model returns, the caller receives a
// well-formed proposal.
package oracle

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
)

// maxContentRunes bounds how much page HTML is sent per decision.
const maxContentRunes = 60000

// Client implements schemas.DecisionOracle on the Gemini API.
type Client struct {
	client *genai.Client
	cfg    config.OracleConfig
	logger *zap.Logger
}

// NewClient dials the model API.
func NewClient(ctx context.Context, cfg config.OracleConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("oracle API key is not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Client{client: client, cfg: cfg, logger: logger.Named("oracle")}, nil
}

// Refine rewrites the raw query into one actionable instruction. The caller
// falls back to the raw query on error.
func (c *Client) Refine(ctx context.Context, url, query string) (string, schemas.Usage, error) {
	text, usage, err := c.generate(ctx, "", []*genai.Part{
		genai.NewPartFromText(buildRefinerPrompt(url, query)),
	})
	if err != nil {
		return "", usage, err
	}
	refined := strings.TrimSpace(text)
	if refined == "" {
		return "", usage, fmt.Errorf("refiner returned empty instruction")
	}
	return refined, usage, nil
}

// Decide asks the model for the next action. Transport failures are returned
// as errors; anything that makes it back as text is coerced into a proposal.
func (c *Client) Decide(ctx context.Context, req schemas.DecideRequest) (schemas.Proposal, schemas.Usage, error) {
	prompt := buildDecisionPrompt(req.Objective, req.URL, req.History,
		truncateToMaxRunes(req.Content, maxContentRunes))

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if len(req.Screenshot) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Screenshot, "image/png"))
	}

	text, usage, err := c.generate(ctx, decisionSystemPrompt, parts)
	if err != nil {
		return schemas.Proposal{}, usage, fmt.Errorf("decision generation failed: %w", err)
	}

	proposal := ParseProposal(text)
	if proposal.Action.Type == schemas.ActionFinish && proposal.Thought == "unparseable oracle response" {
		c.logger.Warn("coerced malformed oracle reply to finish",
			zap.String("reason", proposal.Action.Reason))
	}
	return proposal, usage, nil
}

// generate is the single funnel to the API.
func (c *Client) generate(ctx context.Context, systemPrompt string, parts []*genai.Part) (string, schemas.Usage, error) {
	apiCtx, cancel := context.WithTimeout(ctx, c.cfg.APITimeout)
	defer cancel()

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.cfg.Temperature),
	}
	if c.cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(c.cfg.MaxTokens)
	}
	if systemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := c.client.Models.GenerateContent(apiCtx, c.cfg.Model, contents, genCfg)
	if err != nil {
		return "", schemas.Usage{}, err
	}

	var usage schemas.Usage
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return resp.Text(), usage, nil
}
