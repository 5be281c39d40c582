package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// ProposalLine is one item movement in an interpreted proposal.
type ProposalLine struct {
	SKU        string `json:"sku" jsonschema_description:"The exact SKU from the provided item list"`
	Qty        int    `json:"qty" jsonschema_description:"Total quantity moved (always positive)"`
	CleanQty   int    `json:"clean_qty" jsonschema_description:"For receive flows only: portion returned clean. 0 otherwise."`
	RewashQty  int    `json:"rewash_qty" jsonschema_description:"For receive flows only: portion rejected for rewash. 0 otherwise."`
	DamagedQty int    `json:"damaged_qty" jsonschema_description:"For receive flows only: portion returned damaged. 0 otherwise."`
}

// Proposal is the AI-interpreted linen movement. It is always surfaced to a
// human for confirmation; the agent never posts to the ledger itself.
type Proposal struct {
	Flow       string         `json:"flow" jsonschema_description:"One of: procurement, dispatch_to_laundry, receive_from_laundry, resend_rewash, discard_lost, adjustment"`
	VendorName string         `json:"vendor_name" jsonschema_description:"The vendor involved, exactly as listed. Empty for flows without a vendor."`
	Note       string         `json:"note" jsonschema_description:"A brief summary of the movement"`
	Confidence float64        `json:"confidence" jsonschema_description:"Confidence score between 0.0 and 1.0"`
	Reasoning  string         `json:"reasoning" jsonschema_description:"Explanation for the proposed movement"`
	Lines      []ProposalLine `json:"lines" jsonschema_description:"The item movements"`
}

// ClarificationRequest is returned when the note is too ambiguous to interpret.
type ClarificationRequest struct {
	Message string `json:"message" jsonschema_description:"A message asking the user for the missing details (e.g. which vendor, which item, how many)."`
}

// AgentResponse wraps the AI output to branch between a Proposal and a
// ClarificationRequest. Exactly one of the two is set.
type AgentResponse struct {
	IsClarificationRequest bool                  `json:"is_clarification_request" jsonschema_description:"Set to true ONLY if you lack enough information to propose a movement."`
	Clarification          *ClarificationRequest `json:"clarification,omitempty" jsonschema_description:"Required if is_clarification_request is true."`
	Proposal               *Proposal             `json:"proposal,omitempty" jsonschema_description:"Required if is_clarification_request is false."`
}

type AgentService interface {
	InterpretMovement(ctx context.Context, naturalLanguage, itemList, vendorList string) (*AgentResponse, error)
}

type Agent struct {
	client *openai.Client
}

func NewAgent(apiKey string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Agent{client: &client}
}

// InterpretMovement turns a free-text housekeeping note into a structured
// movement proposal, constrained to the property's known items and vendors.
func (a *Agent) InterpretMovement(ctx context.Context, naturalLanguage, itemList, vendorList string) (*AgentResponse, error) {
	prompt := fmt.Sprintf(`You are the stock clerk of a hotel linen room.
Your goal is to interpret a movement described in natural language and propose a structured linen movement.
Rules:
1. Use ONLY SKUs from the item list below.
2. Use ONLY vendors from the vendor list below; leave vendor_name empty for flows without a vendor.
3. Quantities are whole non-negative numbers.
4. Provide a confidence score (0.0-1.0) and explain your reasoning.
5. If the note is ambiguous, ask for clarification instead of guessing.

Items:
%s

Vendors:
%s

Note: %s`, itemList, vendorList, naturalLanguage)

	// Dynamically generate the JSON schema from the Go struct
	schemaStruct := generateSchema()
	schemaJSON, err := json.Marshal(schemaStruct)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(shared.ChatModelGPT4o),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "linen_movement_proposal",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A proposed linen inventory movement or a clarification request"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	var out AgentResponse
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}
	if !out.IsClarificationRequest && out.Proposal == nil {
		return nil, fmt.Errorf("agent returned neither proposal nor clarification")
	}

	return &out, nil
}

func generateSchema() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v AgentResponse
	return reflector.Reflect(v)
}
