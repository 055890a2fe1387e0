package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// writeJSON prints v as indented JSON, to --out when set.
func (c *cliContext) writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return c.writeBytes(cmd, append(data, '\n'))
}

// writeBytes writes data unchanged, to --out when set.
func (c *cliContext) writeBytes(cmd *cobra.Command, data []byte) error {
	if c.out == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	if err := afero.WriteFile(c.env.Fs, c.out, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.out, err)
	}
	c.app.Logger().Info("output written", "path", c.out, "bytes", len(data))
	return nil
}
