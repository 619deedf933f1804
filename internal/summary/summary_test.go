package summary

import (
	"testing"

	"github.com/lucas-de-lima/payment-gateway/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromLedgerTotalsConvertsCentsToAmount(t *testing.T) {
	s := FromLedgerTotals(
		ledger.ProcessorTotals{TotalRequests: 1, TotalCents: 1050},
		ledger.ProcessorTotals{TotalRequests: 0, TotalCents: 0},
	)

	assert.Equal(t, uint64(1), s.Default.TotalRequests)
	assert.Equal(t, float32(10.5), s.Default.TotalAmount)
	assert.Equal(t, uint64(0), s.Fallback.TotalRequests)
	assert.Equal(t, float32(0), s.Fallback.TotalAmount)
}

func TestMarshalFieldOrderAndIntegralTrailingZero(t *testing.T) {
	s := Summary{
		Default:  ProcessorSummary{TotalRequests: 1, TotalAmount: 10},
		Fallback: ProcessorSummary{TotalRequests: 0, TotalAmount: 0},
	}

	got := string(Marshal(s))
	want := `{"default":{"totalRequests":1,"totalAmount":10.0},"fallback":{"totalRequests":0,"totalAmount":0.0}}`
	assert.Equal(t, want, got)
}

func TestEncodeIntoTooSmallBufferErrors(t *testing.T) {
	s := Summary{Default: ProcessorSummary{TotalRequests: 1, TotalAmount: 10.5}}
	buf := make([]byte, 4)

	_, err := Encode(buf, s)
	assert.Error(t, err)
}

func TestEncodeIntoSufficientBuffer(t *testing.T) {
	s := Summary{
		Default:  ProcessorSummary{TotalRequests: 1, TotalAmount: 10.5},
		Fallback: ProcessorSummary{TotalRequests: 2, TotalAmount: 3.25},
	}

	buf := make([]byte, 128)
	n, err := Encode(buf, s)
	require.NoError(t, err)
	assert.Equal(t, string(Marshal(s)), string(buf[:n]))
}

func TestJSONRoundTrip(t *testing.T) {
	s := Summary{
		Default:  ProcessorSummary{TotalRequests: 3, TotalAmount: 15.75},
		Fallback: ProcessorSummary{TotalRequests: 1, TotalAmount: 2},
	}

	body := Marshal(s)

	got, err := ParseJSON(body)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestPurgeThenWidestSummaryIsAllZero(t *testing.T) {
	s := FromLedgerTotals(ledger.ProcessorTotals{}, ledger.ProcessorTotals{})
	assert.Equal(t, `{"default":{"totalRequests":0,"totalAmount":0.0},"fallback":{"totalRequests":0,"totalAmount":0.0}}`, string(Marshal(s)))
}
