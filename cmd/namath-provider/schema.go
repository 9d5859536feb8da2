// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Namath Provider Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/jancy-plugins/namath-provider/internal/plugin"
)

type schemaOptions struct {
	out   string
	check string
}

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	opts := &schemaOptions{}
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the plugin manifest JSON Schema or check a manifest",
		Long: `Print the JSON Schema for plugin.yaml, write it with --out, or validate a
manifest file against it with --check.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.check != "" {
				return checkManifest(cmd, opts.check)
			}
			return writeSchema(cmd, opts.out)
		},
	}
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write the schema to this file instead of stdout")
	cmd.Flags().StringVar(&opts.check, "check", "", "validate this manifest file")
	return cmd
}

func writeSchema(cmd *cobra.Command, out string) error {
	schema, err := plugin.GenerateSchema()
	if err != nil {
		return err
	}
	if out == "" {
		_, err := cmd.OutOrStdout().Write(append(schema, '\n'))
		if err != nil {
			return oops.Code("OUTPUT_FAILED").Wrap(err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
		return oops.Code("OUTPUT_FAILED").With("path", out).Wrap(err)
	}
	if err := os.WriteFile(out, append(schema, '\n'), 0o600); err != nil {
		return oops.Code("OUTPUT_FAILED").With("path", out).Wrap(err)
	}
	cmd.Printf("Generated %s\n", out)
	return nil
}

func checkManifest(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return oops.Code("MANIFEST_READ_FAILED").With("path", path).Wrap(err)
	}
	if err := plugin.ValidateSchema(data); err != nil {
		return err
	}
	m, err := plugin.ParseManifest(data)
	if err != nil {
		return err
	}
	cmd.Printf("%s %s is valid\n", m.Name, m.Version)
	return nil
}
