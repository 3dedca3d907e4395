// Package bedrockplanner implements collaborator.Planner by asking a Bedrock
// foundation model, via the Converse API, to decompose an intent into an
// ordered plan.
//
// Grounded on bedrock.Client.GenerateResponse and bedrock.CreateAWSConfig
// (Converse API request/response shape, AWS config loading via
// aws-sdk-go-v2/config), generalized from "return free text" to "return a
// JSON plan the model is instructed to produce."
package bedrockplanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/google/uuid"

	"github.com/intentgw/gateway/plan"
)

const systemPrompt = `You are an intent planner for an API gateway. Given a user's natural ` +
	`language intent, produce a JSON plan: an ordered array of steps, each with ` +
	`"order" (1-indexed, gap-free), "serviceName", "functionName", and "parameters" ` +
	`(an object whose string values may reference earlier steps as ` + "`${stepN.path}`" + `, ` +
	"`${userId}`, or `${intent}`). Respond with JSON only: {\"steps\": [...]}."

// Client implements collaborator.Planner over AWS Bedrock.
type Client struct {
	runtime *bedrockruntime.Client
	model   string
	timeout time.Duration
}

// New builds a Client from an already-loaded aws.Config (see LoadConfig).
func New(cfg aws.Config, model string) *Client {
	return &Client{
		runtime: bedrockruntime.NewFromConfig(cfg),
		model:   model,
		timeout: 30 * time.Second,
	}
}

// LoadConfig resolves AWS credentials the standard way (IAM role, env vars,
// profile, or an explicit static access key pair), mirroring
// bedrock.CreateAWSConfig. accessKeyID/secretAccessKey are optional; when
// both are empty, the default provider chain resolves credentials instead.
func LoadConfig(ctx context.Context, region, accessKeyID, secretAccessKey string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKeyID != "" && secretAccessKey != "" {
		provider := credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
		opts = append(opts, awsconfig.WithCredentialsProvider(provider))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("bedrockplanner: loading AWS config: %w", err)
	}
	return cfg, nil
}

type planResponse struct {
	Steps []planStepJSON `json:"steps"`
}

type planStepJSON struct {
	Order        int                    `json:"order"`
	ServiceName  string                 `json:"serviceName"`
	FunctionName string                 `json:"functionName"`
	Parameters   map[string]plan.Value  `json:"parameters"`
}

// Plan asks the model to decompose intent into a Plan via the Converse API.
func (c *Client) Plan(ctx context.Context, intent string, principal plan.Principal) (*plan.Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.model),
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: intent},
				},
			},
		},
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: systemPrompt},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(1000),
			Temperature: aws.Float32(0),
		},
	}

	output, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrockplanner: converse: %w", err)
	}

	text, err := extractText(output)
	if err != nil {
		return nil, err
	}

	var parsed planResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &parsed); err != nil {
		return nil, fmt.Errorf("bedrockplanner: model response was not a valid plan: %w", err)
	}

	steps := make([]plan.Step, len(parsed.Steps))
	for i, s := range parsed.Steps {
		steps[i] = plan.Step{
			Order:        s.Order,
			ServiceName:  s.ServiceName,
			FunctionName: s.FunctionName,
			Parameters:   s.Parameters,
		}
	}

	p := &plan.Plan{ID: uuid.NewString(), Intent: intent, Steps: steps}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("bedrockplanner: model produced an invalid plan: %w", err)
	}
	return p, nil
}

func extractText(output *bedrockruntime.ConverseOutput) (string, error) {
	if output.Output == nil {
		return "", fmt.Errorf("bedrockplanner: no output in response")
	}
	msg, ok := output.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("bedrockplanner: unexpected output type")
	}
	var text strings.Builder
	for _, block := range msg.Value.Content {
		if b, ok := block.(*types.ContentBlockMemberText); ok {
			text.WriteString(b.Value)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("bedrockplanner: empty text content in response")
	}
	return text.String(), nil
}
