package adapter

import (
	"context"
	"testing"

	"buyone/internal/service/inventory/domain/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCELAdmission(t *testing.T) {
	policy, err := NewCELAdmissionAdapter(`quantity <= 10 && !productId.startsWith("blocked-")`)
	require.NoError(t, err)

	cases := []struct {
		name string
		req  port.AdmissionRequest
		want bool
	}{
		{"within limit", port.AdmissionRequest{ProductID: "p-1", Quantity: 10, OrderNumber: "o-1"}, true},
		{"over limit", port.AdmissionRequest{ProductID: "p-1", Quantity: 11, OrderNumber: "o-1"}, false},
		{"blocked product", port.AdmissionRequest{ProductID: "blocked-7", Quantity: 1, OrderNumber: "o-1"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := policy.Admit(context.Background(), tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCELAdmissionRejectsBadRules(t *testing.T) {
	_, err := NewCELAdmissionAdapter(`quantity <=`)
	assert.Error(t, err)

	_, err = NewCELAdmissionAdapter(`quantity + 1`)
	assert.Error(t, err)

	_, err = NewCELAdmissionAdapter(`unknownVar == 1`)
	assert.Error(t, err)
}
