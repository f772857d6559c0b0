package main

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/barnettlynn/fwimage/internal/replconfig"
	"github.com/barnettlynn/fwimage/pkg/fwimage"
)

// session holds the REPL's one open image and the path it was last
// loaded/saved from, per the single-shared-resource model pkg/fwimage
// documents.
type session struct {
	img  *fwimage.Image
	path string
	out  io.Writer
}

func runREPL(out io.Writer) error {
	s := &session{out: out}
	if cfgPath := defaultConfigPath(); cfgPath != "" {
		cfg := loadDefaultConfig(cfgPath)
		if cfg.DefaultImagePath != "" {
			if err := s.load(cfg.DefaultImagePath); err != nil {
				fmt.Fprintf(out, "warning: could not load default image: %v\n", err)
			}
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Fprint(out, "fwimg> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			if quit := s.dispatch(line); quit {
				return nil
			}
		}
		fmt.Fprint(out, "fwimg> ")
	}
	return scanner.Err()
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := home + "/.fwimg.yaml"
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// dispatch runs one REPL command line and reports whether the REPL should
// exit.
func (s *session) dispatch(line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	var err error
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		s.help(args)
	case "load":
		err = s.cmdLoad(args)
	case "save":
		err = s.cmdSave(args)
	case "info":
		err = s.cmdInfo()
	case "verify":
		err = s.cmdVerify()
	case "map":
		err = s.cmdMap()
	case "compact":
		err = s.requireImage(func() error { return s.img.Compact() })
	case "fix":
		err = s.requireImage(func() error { return s.img.Fix() })
	case "md5":
		err = s.cmdMd5()
	case "clean":
		err = s.requireImage(func() error { return s.img.Clean(replconfig.DefaultLocales()) })
	case "restore":
		err = s.cmdRestore(args)
	case "backup":
		err = s.cmdBackup(args)
	case "import":
		err = s.cmdImport(args)
	case "export":
		err = s.cmdExport(args)
	case "eb":
		err = s.cmdEb(args)
	case "db":
		err = s.cmdDb(args)
	case "user":
		err = s.cmdUser()
	case "wl":
		err = s.cmdWl(args)
	case "loc":
		err = s.cmdLoc(args)
	default:
		err = fmt.Errorf("unknown command %q; try 'help'", cmd)
	}
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
	return false
}

func (s *session) requireImage(f func() error) error {
	if s.img == nil {
		return fmt.Errorf("no image loaded; use 'load <path>' first")
	}
	return f()
}

func (s *session) help(args []string) {
	fmt.Fprintln(s.out, "help [cmd] | quit | load <path> | save [path] | info | verify | wl | map | "+
		"compact | md5 | clean | restore <path> | backup <path> | fix | import <mod> <path> [-c|-e] | "+
		"export <mod> <path> [-c|-e] | user | loc <addr> | eb <addr> <byte...> | db <addr> [size]")
}

func (s *session) load(path string) error {
	img, err := loadImageFile(path)
	if err != nil {
		return err
	}
	s.img = img
	s.path = path
	return nil
}

func (s *session) cmdLoad(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: load <path>")
	}
	if err := s.load(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "loaded %s (%d bytes)\n", args[0], s.img.Size())
	return nil
}

func (s *session) cmdSave(args []string) error {
	return s.requireImage(func() error {
		path := s.path
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("usage: save <path> (no default path set)")
		}
		if err := saveImageFile(s.img, path); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "saved %s\n", path)
		return nil
	})
}

func (s *session) cmdInfo() error {
	return s.requireImage(func() error {
		report, err := s.img.Verify()
		if err != nil {
			return err
		}
		for _, tag := range []fwimage.ModuleTag{fwimage.Arm9Static, fwimage.Arm7Static, fwimage.Arm9Secondary, fwimage.Arm7Secondary, fwimage.Resources} {
			info := report.Modules[tag]
			fmt.Fprintf(s.out, "%-5s off=%#07x comp=%#06x uncomp=%#06x kind=%-4s ram=%#010x(%v)\n",
				tag, info.RomOffset, info.CompressedSize, info.UncompressedSize, info.Kind, info.RamAddr, info.RamAddrKnown)
		}
		return nil
	})
}

func (s *session) cmdVerify() error {
	return s.requireImage(func() error {
		report, err := s.img.Verify()
		if err != nil {
			return err
		}
		if report.ErrorCount() == 0 {
			fmt.Fprintln(s.out, okLabel()+": no problems found")
			return nil
		}
		for _, e := range report.Errors {
			fmt.Fprintf(s.out, "%s %s: %s\n", errLabel(), e.Kind, e.Message)
		}
		return nil
	})
}

// okLabel and errLabel carry ANSI color only when stdout is an interactive,
// size-queryable terminal; scripted/piped runs get plain text.
func okLabel() string {
	if colorCapable() {
		return "\033[32mOK\033[0m"
	}
	return "OK"
}

func errLabel() string {
	if colorCapable() {
		return "\033[31merror\033[0m"
	}
	return "error"
}

func (s *session) cmdMap() error {
	return s.cmdInfo()
}

func (s *session) cmdMd5() error {
	return s.requireImage(func() error {
		data, err := s.img.Db(0, s.img.Size())
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%x\n", md5.Sum(data))
		return nil
	})
}

func (s *session) cmdRestore(args []string) error {
	return s.requireImage(func() error {
		if len(args) != 1 {
			return fmt.Errorf("usage: restore <path>")
		}
		backup, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return s.img.Restore(backup)
	})
}

func (s *session) cmdBackup(args []string) error {
	return s.requireImage(func() error {
		if len(args) != 1 {
			return fmt.Errorf("usage: backup <path>")
		}
		data, err := s.img.Backup()
		if err != nil {
			return err
		}
		return os.WriteFile(args[0], data, 0o644)
	})
}

func (s *session) cmdImport(args []string) error {
	return s.requireImage(func() error {
		mod, path, compressed, encrypted, err := parseModuleArgs(args)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return s.img.Import(mod, data, compressed, encrypted)
	})
}

func (s *session) cmdExport(args []string) error {
	return s.requireImage(func() error {
		mod, path, compressed, encrypted, err := parseModuleArgs(args)
		if err != nil {
			return err
		}
		data, err := s.img.Export(mod, compressed, encrypted)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	})
}

func parseModuleArgs(args []string) (fwimage.ModuleTag, string, bool, bool, error) {
	if len(args) < 2 {
		return 0, "", false, false, fmt.Errorf("usage: import|export <mod> <path> [-c|-e]")
	}
	tag, ok := fwimage.ParseModuleTag(args[0])
	if !ok {
		return 0, "", false, false, fmt.Errorf("unknown module %q", args[0])
	}
	compressed, encrypted := false, false
	for _, flag := range args[2:] {
		switch flag {
		case "-c":
			compressed = true
		case "-e":
			compressed, encrypted = true, true
		}
	}
	return tag, args[1], compressed, encrypted, nil
}

func (s *session) cmdUser() error {
	return s.requireImage(func() error {
		report, err := s.img.Verify()
		if err != nil {
			return err
		}
		if report.ErrorCount() == 0 {
			fmt.Fprintln(s.out, "user configuration: valid")
		} else {
			fmt.Fprintln(s.out, "user configuration: see 'verify' for details")
		}
		return nil
	})
}

func (s *session) cmdWl(args []string) error {
	return s.requireImage(func() error {
		report, err := s.img.Verify()
		if err != nil {
			return err
		}
		for _, e := range report.Errors {
			if strings.HasPrefix(e.Kind, "wireless-") {
				fmt.Fprintf(s.out, "%s: %s\n", e.Kind, e.Message)
			}
		}
		return nil
	})
}

// cmdLoc reports which module (if any) an on-ROM address falls within.
func (s *session) cmdLoc(args []string) error {
	return s.requireImage(func() error {
		if len(args) != 1 {
			return fmt.Errorf("usage: loc <addr>")
		}
		addr, err := parseNumber(args[0])
		if err != nil {
			return err
		}
		report, err := s.img.Verify()
		if err != nil {
			return err
		}
		for _, tag := range []fwimage.ModuleTag{fwimage.Arm9Static, fwimage.Arm7Static, fwimage.Arm9Secondary, fwimage.Arm7Secondary, fwimage.Resources} {
			info := report.Modules[tag]
			lo := uint64(info.RomOffset)
			hi := lo + uint64(info.CompressedSize)
			if addr >= lo && addr < hi {
				fmt.Fprintf(s.out, "%#x is inside %s (offset %#x..%#x)\n", addr, tag, lo, hi)
				return nil
			}
		}
		fmt.Fprintf(s.out, "%#x is not inside any known module\n", addr)
		return nil
	})
}

func (s *session) cmdEb(args []string) error {
	return s.requireImage(func() error {
		if len(args) < 2 {
			return fmt.Errorf("usage: eb <addr> <byte...>")
		}
		addr, err := parseNumber(args[0])
		if err != nil {
			return err
		}
		data := make([]byte, 0, len(args)-1)
		for _, tok := range args[1:] {
			v, err := parseNumber(tok)
			if err != nil {
				return err
			}
			data = append(data, byte(v))
		}
		return s.img.Eb(uint32(addr), data)
	})
}

func (s *session) cmdDb(args []string) error {
	return s.requireImage(func() error {
		if len(args) < 1 {
			return fmt.Errorf("usage: db <addr> [size]")
		}
		addr, err := parseNumber(args[0])
		if err != nil {
			return err
		}
		size := 16
		if len(args) >= 2 {
			n, err := parseNumber(args[1])
			if err != nil {
				return err
			}
			size = int(n)
		}
		data, err := s.img.Db(uint32(addr), size)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, hex.EncodeToString(data))
		return nil
	})
}

// parseNumber accepts decimal, 0x-hex, and 0b-binary literals via base-0
// parsing.
func parseNumber(tok string) (uint64, error) {
	return strconv.ParseUint(tok, 0, 64)
}

