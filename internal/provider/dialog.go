// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/jancy-plugins/namath-provider/internal/host"
	"github.com/jancy-plugins/namath-provider/pkg/errutil"
)

// Dialog constants.
const (
	SaveAction   = "example-namath-provider:save"
	AddTitle     = "Configure Example Namath Provider"
	DialogWidth  = 400
	DialogHeight = 150

	FieldKey  = "key"
	FieldName = "providerName"
)

// openDialog shows the configuration dialog. With existing nil it adds a
// provider, otherwise it edits existing in place.
func (f *Factory) openDialog(ctx context.Context, parent host.Window, existing *Provider) error {
	if err := f.api.RegisterAction(SaveAction, f.saveHandler(existing)); err != nil {
		return err
	}

	title := AddTitle
	submit := "Add"
	var key, name string
	if existing != nil {
		title = "Edit " + existing.Name()
		submit = "Update"
		key, name = existing.Key(), existing.Name()
	}

	dlg, err := f.api.CreateDialog(parent, host.DialogOptions{
		Title:                  title,
		Width:                  DialogWidth,
		Height:                 DialogHeight,
		CenterRelativeToParent: true,
	})
	if err != nil {
		f.api.UnregisterAction(SaveAction)
		return err
	}

	dlg.OnClose(func() {
		f.api.UnregisterAction(SaveAction)
	})
	dlg.OnReady(func() {
		form := host.Form{
			Fields: []host.Field{
				{Name: FieldKey, Label: "Key", Value: key},
				{Name: FieldName, Label: "Name", Value: name},
			},
			SubmitLabel: submit,
			CancelLabel: "Cancel",
			Action:      SaveAction,
		}
		if err := dlg.ShowForm(form); err != nil {
			errutil.LogWarn(ctx, f.logger, "failed to render provider dialog", err)
			return
		}
		if err := dlg.Show(); err != nil {
			errutil.LogWarn(ctx, f.logger, "failed to show provider dialog", err)
		}
	})
	return nil
}

// saveHandler returns the action run when the dialog is submitted.
func (f *Factory) saveHandler(existing *Provider) host.ActionHandler {
	return func(ctx context.Context, args map[string]string, _ string) error {
		key := strings.TrimSpace(args[FieldKey])
		name := strings.TrimSpace(args[FieldName])
		if key == "" || name == "" {
			return oops.Code("PROVIDER_CONFIG_INVALID").
				With("missing_key", key == "").
				With("missing_name", name == "").
				Errorf("key and name are required")
		}

		api, err := f.namath()
		if err != nil {
			return err
		}

		if existing != nil {
			existing.apply(State{ProviderName: name, Key: key})
			return api.EditProvider(ctx, existing)
		}

		state, err := json.Marshal(State{
			ProviderName: name,
			Key:          key,
			InstanceID:   uuid.NewString(),
			Type:         Type,
		})
		if err != nil {
			return oops.Code("PROVIDER_STATE_FAILED").Wrap(err)
		}
		_, err = api.CreateProvider(ctx, f, state)
		return err
	}
}
