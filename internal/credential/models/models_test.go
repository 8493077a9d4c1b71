package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialSupports(t *testing.T) {
	cred := Credential{Subject: map[string]any{AttrAddress: "1 Main St", AttrCity: nil}}

	assert.True(t, cred.Supports(AttrAddress))
	assert.False(t, cred.Supports(AttrCity), "null values do not count as present")
	assert.False(t, cred.Supports(AttrZip))
	assert.False(t, Credential{}.Supports(AttrName))
}

func TestCredentialKind(t *testing.T) {
	cases := map[Kind]Credential{
		KindBiometric:   {Subject: map[string]any{AttrBiometricEnrollmentID: "bio-1", AttrName: "Jane Doe"}},
		KindCreditScore: {Subject: map[string]any{AttrCreditScore: 742}},
		KindIdentity:    {Subject: map[string]any{AttrAddress: "1 Main St"}},
		KindUnknown:     {Subject: map[string]any{"loan": true}},
	}
	for want, cred := range cases {
		assert.Equal(t, want, cred.Kind())
	}
}

func TestCredentialAttributeNormalisesNumbers(t *testing.T) {
	var cred Credential
	require.NoError(t, json.Unmarshal([]byte(`{"credentialSubject":{"zip":94107,"score":712.5,"active":true}}`), &cred))

	zip, ok := cred.Attribute(AttrZip)
	require.True(t, ok)
	assert.Equal(t, "94107", zip)

	score, _ := cred.Attribute("score")
	assert.Equal(t, "712.5", score)

	active, _ := cred.Attribute("active")
	assert.Equal(t, "true", active)

	_, ok = cred.Attribute(AttrCity)
	assert.False(t, ok)
}

func TestBundleLen(t *testing.T) {
	var nilBundle *Bundle
	assert.Zero(t, nilBundle.Len())
	assert.Equal(t, 2, (&Bundle{Credentials: make([]Credential, 2)}).Len())
}
