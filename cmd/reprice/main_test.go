package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "farmacia/internal/core/context"
	"farmacia/internal/core/id"
	"farmacia/internal/domain/pricing"
)

func TestParseArgs(t *testing.T) {
	var stderr bytes.Buffer
	opts, err := parseArgs([]string{
		"-type", "supply",
		"-selector", "cost > 50 && !custom",
		"-markup", "1.6",
		"-reason", "tabela 2026",
		"-user", "ana",
	}, &stderr)

	require.NoError(t, err)
	assert.Equal(t, pricing.EntityType("supply"), opts.request.EntityType)
	assert.Equal(t, "cost > 50 && !custom", opts.request.Selector)
	assert.Equal(t, "1.6", opts.request.Markup.String())
	assert.Nil(t, opts.request.CategoryName)
	require.NotNil(t, opts.request.Reason)
	assert.Equal(t, "tabela 2026", *opts.request.Reason)
	assert.Equal(t, "ana", opts.user)
}

func TestParseArgs_DefaultsToSystemUser(t *testing.T) {
	opts, err := parseArgs([]string{"-type", "product", "-category", "alopaticos", "-markup", "2.8"}, &bytes.Buffer{})

	require.NoError(t, err)
	assert.Equal(t, appctx.SystemUser, opts.user)
	require.NotNil(t, opts.request.CategoryName)
	assert.Equal(t, "alopaticos", *opts.request.CategoryName)
	assert.Nil(t, opts.request.Reason)
}

func TestParseArgs_Errors(t *testing.T) {
	tests := map[string][]string{
		"missing markup": {"-type", "product"},
		"missing type":   {"-markup", "2"},
		"bad markup":     {"-type", "product", "-markup", "dois"},
		"bad type":       {"-type", "cosmetic", "-markup", "2"},
		"unknown flag":   {"-force"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseArgs(args, &bytes.Buffer{})
			assert.Error(t, err)
		})
	}
}

func TestRun_UsageErrorExitsBeforeConnecting(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"-type", "product"}, &stdout, &stderr)

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), "-type and -markup are required")
	assert.Empty(t, stdout.String())
}

func TestExitCode(t *testing.T) {
	ref := pricing.EntityRef{Type: "product", ID: id.New()}
	clean := &pricing.BulkRun{Result: pricing.BulkResult{Succeeded: []pricing.EntityRef{ref}}}
	partial := &pricing.BulkRun{Result: pricing.BulkResult{Failed: []pricing.BulkFailure{{Ref: ref}}}}

	assert.Equal(t, exitOK, exitCode(clean, nil))
	assert.Equal(t, exitFail, exitCode(partial, nil))
	assert.Equal(t, exitFail, exitCode(clean, context.Canceled))
	assert.Equal(t, exitFail, exitCode(clean, errors.New("interrupted")))
}

func TestPrintSummary(t *testing.T) {
	ref := pricing.EntityRef{Type: "product", ID: id.New()}
	var out bytes.Buffer

	printSummary(&out, &pricing.BulkRun{
		ID: id.New(),
		Result: pricing.BulkResult{
			Failed: []pricing.BulkFailure{{Ref: ref, ErrorKind: "ABOVE_MAXIMUM", Message: "markup above maximum"}},
		},
	})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "1 entities, 0 re-priced, 1 failed")
	assert.Contains(t, lines[1], ref.String())
	assert.Contains(t, lines[1], "ABOVE_MAXIMUM")
}
