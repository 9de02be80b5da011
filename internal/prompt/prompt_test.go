package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/collectvoice/collectvoice/internal/store"
)

func TestInstructionsHonorific(t *testing.T) {
	tests := []struct {
		name   string
		gender string
		want   string
	}{
		{"lowercase male", "male", "Mr."},
		{"capitalized male", "Male", "Mr."},
		{"uppercase male", "MALE", "Mr."},
		{"female", "Female", "Ms."},
		{"empty", "", "Ms."},
		{"other", "other", "Ms."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Instructions(store.CustomerRecord{
				DebtorName: "Ramesh Kumar",
				Gender:     tt.gender,
				EMIAmount:  "3500",
			})
			assert.Contains(t, out, tt.want+" Ramesh Kumar")
			if tt.want == "Mr." {
				assert.NotContains(t, out, "Ms. Ramesh Kumar")
			}
		})
	}
}

func TestInstructionsInterpolation(t *testing.T) {
	rec := store.CustomerRecord{
		DebtorName:     "Sunita Devi",
		Gender:         "Female",
		EMIAmount:      "15000",
		PaymentDueDate: "2025-01-05",
		Product:        "Two Wheeler Loan",
	}
	out := Instructions(rec)

	assert.Contains(t, out, "Rs. 15,000.00")
	assert.Contains(t, out, "2025-01-05")
	assert.Contains(t, out, "Two Wheeler Loan")
	assert.Contains(t, out, "check_payment_status")
	assert.True(t, strings.HasSuffix(out, EndMarker), "instructions should end with the termination marker")
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"3500", "3,500.00"},
		{"15000", "15,000.00"},
		{"1234567.5", "1,234,567.50"},
		{"999", "999.00"},
		{"0", "0.00"},
		{"-4500", "-4,500.00"},
		{" 1200 ", "1,200.00"},
		{"not-a-number", "not-a-number"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(tt.in))
		})
	}
}
