package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"morph/internal/preset"
	"morph/internal/tui"
)

var presetFlags optionFlags

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Manage saved conversion presets",
}

var presetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := preset.Open(cfg.Presets.Path)
		if err != nil {
			return err
		}

		presets := store.List()
		if len(presets) == 0 {
			fmt.Fprintln(os.Stdout, presetDimStyle.Render("no presets saved"))
			return nil
		}
		for _, p := range presets {
			o := p.Options
			fmt.Fprintf(os.Stdout, "%s %s\n", presetNameStyle.Render(p.Name), presetFormatStyle.Render(p.Format.String()))
			fmt.Fprintf(os.Stdout, "  %s\n", presetDimStyle.Render(fmt.Sprintf(
				"jpeg:%d webp:%d lossless:%t png:%d size:%dx%d keep-aspect:%t rotate:%d loop:%d",
				o.JPEGQuality, o.WebPQuality, o.WebPLossless, o.PNGCompression,
				o.Width, o.Height, o.KeepAspectRatio, o.Rotation, o.LoopCount,
			)))
		}
		return nil
	},
}

var presetSaveCmd = &cobra.Command{
	Use:   "save [flags] <name>",
	Short: "Save the given flags as a named preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, opts, err := presetFlags.resolve(cmd)
		if err != nil {
			return err
		}
		store, err := preset.Open(cfg.Presets.Path)
		if err != nil {
			return err
		}
		if err := store.Save(preset.Preset{Name: args[0], Format: format, Options: opts}); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "saved preset %s\n", presetNameStyle.Render(args[0]))
		return nil
	},
}

var presetDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := preset.Open(cfg.Presets.Path)
		if err != nil {
			return err
		}
		return store.Delete(args[0])
	},
}

var (
	presetNameStyle   = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	presetFormatStyle = lipgloss.NewStyle().Foreground(tui.ColorAccentAlt)
	presetDimStyle    = lipgloss.NewStyle().Foreground(tui.ColorDim)
)

func init() {
	presetFlags.bind(presetSaveCmd, true)
	presetCmd.AddCommand(presetListCmd, presetSaveCmd, presetDeleteCmd)
	rootCmd.AddCommand(presetCmd)
}
