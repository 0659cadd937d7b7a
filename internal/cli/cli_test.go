package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"docnum/internal/core/apperror"
	"docnum/internal/core/numerator"
	"docnum/internal/domain/numbering"
	"docnum/internal/infrastructure/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memoryOpener shares one in-memory store across every command it opens.
func memoryOpener(store numerator.CounterStore) Opener {
	opts := numbering.DefaultOptions()
	opts.Clock = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	return func(context.Context, *RootOptions) (*numbering.Service, func() error, error) {
		return numbering.NewService(store, opts), nil, nil
	}
}

func run(t *testing.T, open Opener, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "numctl", cmd.Use)
	assert.Contains(t, cmd.Long, "sales_order")

	for _, name := range []string{"next", "current", "list", "rebase", "types", "check"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestNext_Text(t *testing.T) {
	open := memoryOpener(memory.NewCounterStore())

	out, err := run(t, open, "next", "invoice")
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-00001\n", out)

	out, err = run(t, open, "next", "Invoice", "--count", "3")
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-00002\nINV-2026-00003\nINV-2026-00004\n", out)
}

func TestNext_JSON(t *testing.T) {
	open := memoryOpener(memory.NewCounterStore())

	out, err := run(t, open, "--format", "json", "next", "quotation")
	require.NoError(t, err)

	var resp struct {
		Status  string `json:"status"`
		TraceID string `json:"trace_id"`
		Data    struct {
			DocumentType string `json:"documentType"`
			Number       int64  `json:"number"`
			Formatted    string `json:"formatted"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.TraceID)
	assert.Equal(t, int64(1), resp.Data.Number)
	assert.Equal(t, "QUO-2026-00001", resp.Data.Formatted)
}

func TestNext_UnknownType(t *testing.T) {
	_, err := run(t, memoryOpener(memory.NewCounterStore()), "next", "purchase_order")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidDocumentType))
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestCurrentRebaseList(t *testing.T) {
	open := memoryOpener(memory.NewCounterStore())

	out, err := run(t, open, "current", "payroll_run")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)

	out, err = run(t, open, "rebase", "payroll_run", "250")
	require.NoError(t, err)
	assert.Equal(t, "payroll_run last issued: 250\n", out)

	out, err = run(t, open, "rebase", "payroll_run", "10")
	require.NoError(t, err)
	assert.Equal(t, "payroll_run last issued: 250\n", out)

	_, err = run(t, open, "rebase", "payroll_run", "ten")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	out, err = run(t, open, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "DOCUMENT TYPE")
	assert.Contains(t, out, "payroll_run")
	assert.Contains(t, out, "250")
}

func TestTypes(t *testing.T) {
	out, err := run(t, memoryOpener(memory.NewCounterStore()), "types")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[1], "inquiry")
	assert.Contains(t, lines[1], "INQ-2026-00001")
}

func TestCheck(t *testing.T) {
	open := memoryOpener(memory.NewCounterStore())

	out, err := run(t, open, "--format", "json", "check", "sales_order", "--workers", "8", "--calls", "200")
	require.NoError(t, err)

	var resp struct {
		Data CheckReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.OK)
	assert.Equal(t, int64(1), resp.Data.First)
	assert.Equal(t, int64(200), resp.Data.Last)
	assert.Empty(t, resp.Data.Duplicates)
}

func TestCheck_InvalidFlags(t *testing.T) {
	_, err := run(t, memoryOpener(memory.NewCounterStore()), "check", "invoice", "--workers", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestVerify(t *testing.T) {
	r := verify(numerator.Invoice, []int64{3, 1, 2, 2, 6})
	assert.False(t, r.OK)
	assert.Equal(t, []int64{2}, r.Duplicates)
	assert.Equal(t, int64(2), r.Gaps)
	assert.Equal(t, int64(1), r.First)
	assert.Equal(t, int64(6), r.Last)

	assert.True(t, verify(numerator.Invoice, []int64{5, 4, 6}).OK)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, memoryOpener(memory.NewCounterStore()), "--format", "xml", "types")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestOpenConfigured_SQLite(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	dbPath := filepath.Join(dir, "docnum.db")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  driver: sqlite\n  sqlite_path: "+dbPath+"\n"), 0o600))

	out, err := run(t, openConfigured, "--config", cfgPath, "--format", "json", "current", "invoice")
	require.NoError(t, err)
	assert.Contains(t, out, `"lastIssued": 0`)

	_, err = run(t, openConfigured, "--config", cfgPath, "next", "invoice")
	require.NoError(t, err)

	out, err = run(t, openConfigured, "--config", cfgPath, "--format", "json", "current", "invoice")
	require.NoError(t, err)
	assert.Contains(t, out, `"lastIssued": 1`)
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, "text", apperror.NewConflict("busy"))
	assert.Equal(t, "Error [CONFLICT]: busy\n", buf.String())

	buf.Reset()
	PrintError(&buf, "json", NewExitError(ExitCommandError, "bad flags"))
	assert.Contains(t, buf.String(), `"COMMAND_ERROR"`)

	buf.Reset()
	PrintError(&buf, "text", errors.New("plain"))
	assert.Contains(t, buf.String(), apperror.CodeInternal)
}
