package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proofbridge/internal/platform/servicetoken"
)

func TestMintVerifiesAgainstAudience(t *testing.T) {
	for name, svc := range services {
		t.Run(name, func(t *testing.T) {
			token, err := mint(devSigningKey, defaultIssuer, svc.audience, svc.scope, time.Minute)
			require.NoError(t, err)

			claims, err := servicetoken.Verify(token, devSigningKey, svc.audience)
			require.NoError(t, err)
			assert.Equal(t, svc.scope, claims.Scope)
			assert.Equal(t, defaultIssuer, claims.Issuer)
		})
	}
}

func TestMintRejectsEmptyKey(t *testing.T) {
	_, err := mint("", defaultIssuer, servicetoken.AudienceIssuer, servicetoken.ScopeCredentialIssue, time.Minute)
	assert.Error(t, err)
}
