package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPhoneFormat(t *testing.T) {
	out, err := execute(t, "phone", "format", "11987654321")
	require.NoError(t, err)
	assert.Equal(t, "(11) 98765-4321\n", out)
}

func TestPhonePrepare(t *testing.T) {
	out, err := execute(t, "phone", "prepare", "(11) 98765-4321")
	require.NoError(t, err)
	assert.Equal(t, "5511987654321\n", out)
}

func TestPhoneCheck(t *testing.T) {
	out, err := execute(t, "phone", "check", "(11) 3333-4444")
	require.NoError(t, err)
	assert.Equal(t, "ok 551133334444\n", out)

	_, err = execute(t, "phone", "check", "1234")
	require.Error(t, err)
	assert.Equal(t, "Número de WhatsApp inválido", err.Error())
}

func TestPhone_RequiresOneArg(t *testing.T) {
	_, err := execute(t, "phone", "format")
	assert.Error(t, err)
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	_, err := execute(t, "migrate", "up", "--database-url", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
