// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package host

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Window is a handle to a host window that dialogs are parented to.
type Window struct {
	ID string
}

// DialogOptions sizes and places a dialog.
type DialogOptions struct {
	Title                  string
	Width                  int
	Height                 int
	CenterRelativeToParent bool
}

// Field is a labelled text input.
type Field struct {
	Name  string
	Label string
	Value string
}

// Form is the content of a configuration dialog. Submitting dispatches
// Action with the field values keyed by field name.
type Form struct {
	Fields      []Field
	SubmitLabel string
	CancelLabel string
	Action      string
}

// Dialog is a modal window created by the host.
type Dialog interface {
	// OnReady registers fn to run once the window can be shown.
	OnReady(fn func())
	// OnClose registers fn to run when the window closes.
	OnClose(fn func())
	ShowForm(f Form) error
	Show() error
	Close() error
}

// DialogFactory creates dialogs.
type DialogFactory interface {
	Create(parent Window, opts DialogOptions) (Dialog, error)
}

// MemoryDialogs is a DialogFactory that keeps dialogs in memory instead of
// rendering them. Submitting a dialog dispatches its form action.
type MemoryDialogs struct {
	actions *Actions

	mu     sync.Mutex
	opened []*MemoryDialog
}

var _ DialogFactory = (*MemoryDialogs)(nil)

// NewMemoryDialogs creates a factory whose dialogs dispatch into actions.
func NewMemoryDialogs(actions *Actions) *MemoryDialogs {
	return &MemoryDialogs{actions: actions}
}

// Create opens a new dialog parented to parent.
func (f *MemoryDialogs) Create(parent Window, opts DialogOptions) (Dialog, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, oops.Code("DIALOG_OPTIONS_INVALID").
			With("width", opts.Width).
			With("height", opts.Height).
			Errorf("dialog dimensions must be positive")
	}
	d := &MemoryDialog{
		id:      uuid.NewString(),
		parent:  parent,
		opts:    opts,
		actions: f.actions,
	}
	f.mu.Lock()
	f.opened = append(f.opened, d)
	f.mu.Unlock()
	return d, nil
}

// Opened returns every dialog created so far, oldest first.
func (f *MemoryDialogs) Opened() []*MemoryDialog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.opened)
}

// Last returns the most recently created dialog.
func (f *MemoryDialogs) Last() (*MemoryDialog, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.opened) == 0 {
		return nil, false
	}
	return f.opened[len(f.opened)-1], true
}

// MemoryDialog is an unrendered dialog.
type MemoryDialog struct {
	id      string
	parent  Window
	opts    DialogOptions
	actions *Actions

	mu      sync.Mutex
	form    *Form
	shown   bool
	closed  bool
	ready   []func()
	onClose []func()
}

var _ Dialog = (*MemoryDialog)(nil)

// ID identifies the dialog as an action sender.
func (d *MemoryDialog) ID() string { return d.id }

// Parent returns the window the dialog was created for.
func (d *MemoryDialog) Parent() Window { return d.parent }

// Options returns the creation options.
func (d *MemoryDialog) Options() DialogOptions { return d.opts }

// OnReady implements Dialog.
func (d *MemoryDialog) OnReady(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready = append(d.ready, fn)
}

// OnClose implements Dialog.
func (d *MemoryDialog) OnClose(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onClose = append(d.onClose, fn)
}

// Ready fires the ready callbacks, as the host does once the window has
// loaded.
func (d *MemoryDialog) Ready() {
	d.mu.Lock()
	fns := slices.Clone(d.ready)
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// ShowForm implements Dialog.
func (d *MemoryDialog) ShowForm(f Form) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errDialogClosed(d.id)
	}
	f.Fields = slices.Clone(f.Fields)
	d.form = &f
	return nil
}

// Show implements Dialog.
func (d *MemoryDialog) Show() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errDialogClosed(d.id)
	}
	d.shown = true
	return nil
}

// Close implements Dialog. Close callbacks run on the first call only.
func (d *MemoryDialog) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.shown = false
	fns := slices.Clone(d.onClose)
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

// Form returns a copy of the displayed form.
func (d *MemoryDialog) Form() (Form, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.form == nil {
		return Form{}, false
	}
	f := *d.form
	f.Fields = slices.Clone(f.Fields)
	return f, true
}

// Shown reports whether the dialog is visible.
func (d *MemoryDialog) Shown() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shown
}

// Closed reports whether the dialog has been closed.
func (d *MemoryDialog) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Submit presses the submit button. Field values not present in values keep
// their prefilled value. The dialog closes only if the action succeeds.
func (d *MemoryDialog) Submit(ctx context.Context, values map[string]string) error {
	d.mu.Lock()
	if !d.shown || d.form == nil {
		d.mu.Unlock()
		return oops.Code("DIALOG_NOT_SHOWN").With("dialog", d.id).Errorf("dialog has no visible form")
	}
	form := *d.form
	d.mu.Unlock()

	args := make(map[string]string, len(form.Fields))
	for _, field := range form.Fields {
		v, ok := values[field.Name]
		if !ok {
			v = field.Value
		}
		args[field.Name] = v
	}

	if err := d.actions.Dispatch(ctx, form.Action, args, d.id); err != nil {
		return err
	}
	return d.Close()
}

// Cancel presses the cancel button.
func (d *MemoryDialog) Cancel() error {
	return d.Close()
}

func errDialogClosed(id string) error {
	return oops.Code("DIALOG_CLOSED").With("dialog", id).Errorf("dialog is closed")
}
