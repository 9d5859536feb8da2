// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package host

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jancy-plugins/namath-provider/pkg/errutil"
)

func testForm() Form {
	return Form{
		Fields: []Field{
			{Name: "key", Label: "Key", Value: "old-key"},
			{Name: "providerName", Label: "Name"},
		},
		SubmitLabel: "Add",
		CancelLabel: "Cancel",
		Action:      "save",
	}
}

func TestMemoryDialogs_CreateValidatesSize(t *testing.T) {
	f := NewMemoryDialogs(NewActions())
	_, err := f.Create(Window{ID: "w"}, DialogOptions{Width: 0, Height: 150})
	errutil.AssertErrorCode(t, err, "DIALOG_OPTIONS_INVALID")

	_, ok := f.Last()
	assert.False(t, ok)
}

func TestMemoryDialog_Lifecycle(t *testing.T) {
	actions := NewActions()
	f := NewMemoryDialogs(actions)

	dlg, err := f.Create(Window{ID: "main"}, DialogOptions{Title: "T", Width: 400, Height: 150})
	require.NoError(t, err)
	d, ok := f.Last()
	require.True(t, ok)
	assert.Same(t, dlg, d)
	assert.Equal(t, "main", d.Parent().ID)
	assert.NotEmpty(t, d.ID())

	readied, closed := 0, 0
	d.OnReady(func() {
		readied++
		require.NoError(t, d.ShowForm(testForm()))
		require.NoError(t, d.Show())
	})
	d.OnClose(func() { closed++ })

	assert.False(t, d.Shown())
	d.Ready()
	assert.Equal(t, 1, readied)
	assert.True(t, d.Shown())

	form, ok := d.Form()
	require.True(t, ok)
	assert.Equal(t, "Add", form.SubmitLabel)

	require.NoError(t, d.Cancel())
	require.NoError(t, d.Close())
	assert.Equal(t, 1, closed)
	assert.True(t, d.Closed())
	errutil.AssertErrorCode(t, d.Show(), "DIALOG_CLOSED")
	errutil.AssertErrorCode(t, d.ShowForm(testForm()), "DIALOG_CLOSED")
}

func TestMemoryDialog_SubmitDispatchesAndCloses(t *testing.T) {
	actions := NewActions()
	var got map[string]string
	require.NoError(t, actions.Register("save", func(_ context.Context, args map[string]string, _ string) error {
		got = args
		return nil
	}))

	dlg, err := NewMemoryDialogs(actions).Create(Window{}, DialogOptions{Width: 1, Height: 1})
	require.NoError(t, err)
	d := dlg.(*MemoryDialog)

	errutil.AssertErrorCode(t, d.Submit(context.Background(), nil), "DIALOG_NOT_SHOWN")

	require.NoError(t, d.ShowForm(testForm()))
	require.NoError(t, d.Show())
	require.NoError(t, d.Submit(context.Background(), map[string]string{"providerName": "Mine", "extra": "ignored"}))

	assert.Equal(t, map[string]string{"key": "old-key", "providerName": "Mine"}, got)
	assert.True(t, d.Closed())
}

func TestMemoryDialog_FailedSubmitStaysOpen(t *testing.T) {
	actions := NewActions()
	require.NoError(t, actions.Register("save", func(context.Context, map[string]string, string) error {
		return errors.New("rejected")
	}))

	dlg, err := NewMemoryDialogs(actions).Create(Window{}, DialogOptions{Width: 1, Height: 1})
	require.NoError(t, err)
	d := dlg.(*MemoryDialog)
	require.NoError(t, d.ShowForm(testForm()))
	require.NoError(t, d.Show())

	require.Error(t, d.Submit(context.Background(), nil))
	assert.False(t, d.Closed())
	assert.True(t, d.Shown())
}
