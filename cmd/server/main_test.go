package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpserver "github.com/fairyhunter13/interview-evaluator/internal/adapter/httpserver"
)

func TestHashToken(t *testing.T) {
	var out bytes.Buffer
	require.Equal(t, 0, hashToken(&out, "s3cret"))

	hash := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(hash, "argon2id$"))
	assert.True(t, httpserver.VerifyToken("s3cret", hash))

	out.Reset()
	assert.Equal(t, 2, hashToken(&out, ""))
	assert.Empty(t, out.String())
}
