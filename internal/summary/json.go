package summary

import "encoding/json"

// jsonProcessorSummary/jsonSummary give the wire shape encoding/json
// struct tags, used only for the round-trip property in spec §8
// ("Summary JSON parses back into a Summary with byte-equal numeric
// contents") — the actual wire encoder is Marshal/Encode above, kept
// hand-rolled to guarantee the fixed field order and float formatting
// spec §4.7 mandates.
type jsonProcessorSummary struct {
	TotalRequests uint64  `json:"totalRequests"`
	TotalAmount   float32 `json:"totalAmount"`
}

type jsonSummary struct {
	Default  jsonProcessorSummary `json:"default"`
	Fallback jsonProcessorSummary `json:"fallback"`
}

// ParseJSON decodes a Summary from the wire JSON form produced by
// Marshal/Encode.
func ParseJSON(body []byte) (Summary, error) {
	var js jsonSummary
	if err := json.Unmarshal(body, &js); err != nil {
		return Summary{}, err
	}

	return Summary{
		Default:  ProcessorSummary(js.Default),
		Fallback: ProcessorSummary(js.Fallback),
	}, nil
}
