package commands

import (
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	whisper "github.com/ieee0824/whisper-go"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show system and model information",
	Long: `Show the compute capabilities of this machine and, when a model is
configured, its hyperparameters.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, fileStyle.Render("system"))
		fmt.Fprintln(out, whisper.SystemInfo())

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Model == "" {
			return nil
		}
		m, err := openModel(cfg, newLogger(cfg.LogLevel))
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, fileStyle.Render(cfg.Model))
		fmt.Fprintf(out, "backend: %s\n", m.Backend())
		fmt.Fprintf(out, "multilingual: %v\n", m.IsMultilingual())
		data, err := yaml.Marshal(m.HParams())
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	},
}
