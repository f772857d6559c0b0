package main

import (
	"crypto/md5"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/fwimage/internal/replconfig"
	"github.com/barnettlynn/fwimage/pkg/fwimage"
)

func loadImageFile(path string) (*fwimage.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	img, err := fwimage.Load(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return img, nil
}

func saveImageFile(img *fwimage.Image, path string) error {
	if err := os.WriteFile(path, img.Save(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

var infoCmd = &cobra.Command{
	Use:   "info <path>",
	Short: "Print module offsets, sizes, and RAM addresses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := loadImageFile(args[0])
		if err != nil {
			return err
		}
		report, err := img.Verify()
		if err != nil {
			return err
		}
		for _, tag := range []fwimage.ModuleTag{fwimage.Arm9Static, fwimage.Arm7Static, fwimage.Arm9Secondary, fwimage.Arm7Secondary, fwimage.Resources} {
			info := report.Modules[tag]
			fmt.Fprintf(cmd.OutOrStdout(), "%-5s off=%#07x comp=%#06x uncomp=%#06x kind=%-4s ram=%#010x(%v) decodable=%v\n",
				tag, info.RomOffset, info.CompressedSize, info.UncompressedSize, info.Kind, info.RamAddr, info.RamAddrKnown, info.Decodable)
		}
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Validate module checksums, RAM reachability, and wireless settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := loadImageFile(args[0])
		if err != nil {
			return err
		}
		report, err := img.Verify()
		if err != nil {
			return err
		}
		if report.ErrorCount() == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "OK: no problems found")
			return nil
		}
		for _, e := range report.Errors {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", e.Kind, e.Message)
		}
		return fmt.Errorf("%d problem(s) found", report.ErrorCount())
	},
}

var fixCmd = &cobra.Command{
	Use:   "fix <in> [out]",
	Short: "Recompute and rewrite checksums",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := loadImageFile(args[0])
		if err != nil {
			return err
		}
		if err := img.Fix(); err != nil {
			return err
		}
		out := outputPath(args, 1, args[0])
		return saveImageFile(img, out)
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact <in> [out]",
	Short: "Re-pack every module contiguously from offset 0x200",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := loadImageFile(args[0])
		if err != nil {
			return err
		}
		if err := img.Compact(); err != nil {
			return err
		}
		out := outputPath(args, 1, args[0])
		return saveImageFile(img, out)
	},
}

var md5Cmd = &cobra.Command{
	Use:   "md5 <path>",
	Short: "Print the whole image's MD5 digest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		sum := md5.Sum(data)
		fmt.Fprintf(cmd.OutOrStdout(), "%x\n", sum)
		return nil
	},
}

var localeConfigPath string

var cleanCmd = &cobra.Command{
	Use:   "clean <in> [out]",
	Short: "Reset user-config slots, wireless table, and connection settings",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := loadImageFile(args[0])
		if err != nil {
			return err
		}
		locales := replconfig.DefaultLocales()
		if localeConfigPath != "" {
			cfg := loadDefaultConfig(localeConfigPath)
			locales = replconfig.Merge(locales, cfg.Locales)
		}
		if err := img.Clean(locales); err != nil {
			return err
		}
		out := outputPath(args, 1, args[0])
		return saveImageFile(img, out)
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <in> <backup> [out]",
	Short: "Restore a backup record produced by the REPL's `backup` command",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := loadImageFile(args[0])
		if err != nil {
			return err
		}
		backup, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		if err := img.Restore(backup); err != nil {
			return err
		}
		out := outputPath(args, 2, args[0])
		return saveImageFile(img, out)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <mod> <in> <payload> [out]",
	Short: "Replace one module's content",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, ok := fwimage.ParseModuleTag(args[0])
		if !ok {
			return fmt.Errorf("unknown module %q", args[0])
		}
		img, err := loadImageFile(args[1])
		if err != nil {
			return err
		}
		payload, err := os.ReadFile(args[2])
		if err != nil {
			return err
		}
		compressed, _ := cmd.Flags().GetBool("compressed")
		encrypted, _ := cmd.Flags().GetBool("encrypted")
		if err := img.Import(tag, payload, compressed, encrypted); err != nil {
			return err
		}
		out := outputPath(args, 3, args[1])
		return saveImageFile(img, out)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <mod> <in> <out>",
	Short: "Extract one module's content",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, ok := fwimage.ParseModuleTag(args[0])
		if !ok {
			return fmt.Errorf("unknown module %q", args[0])
		}
		img, err := loadImageFile(args[1])
		if err != nil {
			return err
		}
		compressed, _ := cmd.Flags().GetBool("compressed")
		encrypted, _ := cmd.Flags().GetBool("encrypted")
		data, err := img.Export(tag, compressed, encrypted)
		if err != nil {
			return err
		}
		return os.WriteFile(args[2], data, 0o644)
	},
}

func init() {
	cleanCmd.Flags().StringVar(&localeConfigPath, "locale-config", "", "optional locale table override (YAML)")
	importCmd.Flags().BoolP("compressed", "c", false, "payload is already compressed")
	importCmd.Flags().BoolP("encrypted", "e", false, "payload is already compressed and encrypted (static modules only); implies -c")
	exportCmd.Flags().BoolP("compressed", "c", false, "export compressed bytes instead of plaintext")
	exportCmd.Flags().BoolP("encrypted", "e", false, "export encrypted bytes too (static modules only); implies -c")
}

// outputPath returns args[idx] when present, else fallback.
func outputPath(args []string, idx int, fallback string) string {
	if idx < len(args) {
		return args[idx]
	}
	return fallback
}
