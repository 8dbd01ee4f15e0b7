package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestGeminiRole(t *testing.T) {
	assert.Equal(t, genai.Role(genai.RoleModel), geminiRole("assistant"))
	assert.Equal(t, genai.Role(genai.RoleUser), geminiRole("user"))
	assert.Equal(t, genai.Role(genai.RoleUser), geminiRole("system"))
	assert.Equal(t, genai.Role(genai.RoleUser), geminiRole(""))
}
