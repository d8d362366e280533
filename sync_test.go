package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loxsync/agent/internal/config"
	"github.com/loxsync/agent/internal/remote"
)

func TestBuildTokenSource_LoxAuthTypeBuildsPasswordSource(t *testing.T) {
	acct := &config.ResolvedAccount{AuthType: config.AuthTypeLox, LoxURL: "https://lox.example"}

	ts, err := buildTokenSource(acct)
	require.NoError(t, err)
	assert.NotNil(t, ts)
}

func TestBuildTokenSource_TokenAuthTypeBuildsStaticSource(t *testing.T) {
	acct := &config.ResolvedAccount{AuthType: config.AuthTypeToken, Password: "preissued-token"}

	ts, err := buildTokenSource(acct)
	require.NoError(t, err)

	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "preissued-token", tok)
}

func TestBuildTokenSource_UnsupportedAuthTypeIsFatal(t *testing.T) {
	acct := &config.ResolvedAccount{AuthType: "carrier-pigeon"}

	_, err := buildTokenSource(acct)
	require.Error(t, err)
	assert.True(t, errors.Is(err, remote.ErrFatal))
}
