package gateway

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	categories  = []any{"FOOD", "ENTERTAINMENT", "FAMILY", "TRANSPORT", "HEALTH", "HOUSING", "UTILITIES", "INCOME", "SAVINGS", "OTHER"}
	sourceTypes = []any{"MANUAL", "VOICE", "PHOTO", "CHATGPT"}
	statuses    = []any{"PENDING", "IN_PROGRESS", "COMPLETED", "FAILED"}
	periods     = []any{"WEEK", "MONTH", "QUARTER", "YEAR"}
)

func objectSchema(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
		// {"not": {}} is the false schema: no undeclared properties.
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}

func prop(typ, description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: typ, Description: description}
}

func enumProp(description string, values []any) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description, Enum: values}
}

func timestampProp(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Format: "date-time", Description: description}
}

func createTransactionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "createTransaction",
		Description: "Create a transaction entry in Finance Angle.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"amount":           prop("number", "Transaction amount in EUR."),
			"category":         enumProp("Category for the transaction. Defaults to OTHER.", categories),
			"occurredAt":       timestampProp("ISO timestamp when the transaction happened. Defaults to now."),
			"notes":            prop("string", "Optional notes"),
			"receiptReference": prop("string", "Optional receipt reference"),
			"sourceType":       enumProp("Source type override. Defaults to CHATGPT.", sourceTypes),
		}, "amount"),
	}
}

func registerReceiptTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "registerReceipt",
		Description: "Register a receipt ingestion event before linking it to a transaction.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"externalId": prop("string", "External identifier"),
			"receiptUri": prop("string", "Optional storage URI for the receipt"),
			"metadata":   prop("string", "Optional metadata payload"),
			"status":     enumProp("Receipt ingestion status", statuses),
		}, "externalId"),
	}
}

func getReceiptStatusTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "getReceiptStatus",
		Description: "Fetch the current ingestion status for a receipt by external id.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"externalId": prop("string", "Receipt external id"),
		}, "externalId"),
	}
}

func createSavingsSnapshotTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "createSavingsSnapshot",
		Description: "Create a savings snapshot entry.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"amount":     prop("number", "Savings balance amount"),
			"capturedAt": timestampProp("Timestamp when the balance was captured"),
			"notes":      prop("string", "Optional notes"),
		}, "amount"),
	}
}

func getLatestSavingsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "getLatestSavings",
		Description: "Retrieve the latest recorded savings snapshot.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{}),
	}
}

func getTransactionSummaryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "getTransactionSummary",
		Description: "Retrieve a transaction summary for a given period.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"period":    enumProp("Summary period", periods),
			"reference": timestampProp("Reference timestamp for the summary anchor"),
		}),
	}
}
