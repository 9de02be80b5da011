// Package tools holds the function-calling surface exposed to the realtime
// model and the local dispatch for intercepted calls.
package tools

const (
	CheckPaymentStatusName = "check_payment_status"

	// UnknownToolResult is returned for tool names with no local dispatch.
	// The turn keeps going; the model sees the literal string as the output.
	UnknownToolResult = "Unknown tool"
)

// Definition is a function tool entry in the realtime session configuration.
type Definition struct {
	Type        string     `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

type Parameters struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

type Property struct {
	Type string `json:"type"`
}

// Definitions lists the tools advertised to the model at connect time.
func Definitions() []Definition {
	return []Definition{
		{
			Type:        "function",
			Name:        CheckPaymentStatusName,
			Description: "Get the status of the last loan payment",
			Parameters: Parameters{
				Type: "object",
				Properties: map[string]Property{
					"DPD": {Type: "string"},
				},
				Required: []string{"DPD"},
			},
		},
	}
}

// CheckPaymentStatus maps a days-past-due value to the payment status the
// model relays to the customer.
func CheckPaymentStatus(dpd int) string {
	if dpd == 0 {
		return "payment completed"
	}
	return "payment not completed"
}

// Dispatch invokes the named tool. dpd comes from the stored customer
// record, not the model's argument payload.
func Dispatch(name string, dpd int) string {
	switch name {
	case CheckPaymentStatusName:
		return CheckPaymentStatus(dpd)
	default:
		return UnknownToolResult
	}
}
