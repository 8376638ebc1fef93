package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type searchPayload struct {
	Origin  string   `json:"origin" validate:"required,iata"`
	Adults  int      `form:"adults" validate:"gte=1,lte=9"`
	Carrier []string `json:"airlines" validate:"dive,airline"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := searchPayload{Origin: "jfk", Adults: 2, Carrier: []string{"BA", "U2"}}
	require.NoError(t, ValidateStruct(payload))
}

func TestValidateStructFailures(t *testing.T) {
	payload := searchPayload{Origin: "JF1", Adults: 0, Carrier: []string{"BAW"}}

	err := ValidateStruct(payload)
	require.Error(t, err)

	vErrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.Len(t, vErrs, 3)

	fields := vErrs.Fields()
	require.Equal(t, "iata", fields["origin"])
	require.Equal(t, "gte=1", fields["adults"])
	require.Contains(t, vErrs.Error(), "origin failed on iata")
}

func TestIsCode(t *testing.T) {
	require.True(t, isCode("LHR", 3, false))
	require.False(t, isCode("LH", 3, false))
	require.False(t, isCode("L1R", 3, false))
	require.True(t, isCode("9W", 2, true))
}
