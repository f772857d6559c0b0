/*
Package fwimage provides a library for introspecting, validating, and
repacking handheld-console firmware images: a byte-addressable blob whose
layout is partly described by a fixed header and partly reconstructed by
decoding five embedded modules (two encrypted ARM9/ARM7 static modules, two
ARM9/ARM7 secondary modules, and a resource pack).

This package never touches the filesystem. Load and Save work on []byte;
callers own file I/O.

# Worked example

	data, err := os.ReadFile("firmware.bin")
	if err != nil {
		log.Fatal(err)
	}
	img, err := fwimage.Load(data)
	if err != nil {
		log.Fatal(err)
	}
	report, err := img.Verify()
	if err != nil {
		log.Fatal(err)
	}
	if report.ErrorCount() > 0 {
		if err := img.Fix(); err != nil {
			log.Fatal(err)
		}
	}
	if err := os.WriteFile("firmware.bin", img.Save(), 0o644); err != nil {
		log.Fatal(err)
	}

# Session state

An *Image progresses through three states: Empty (returned only by a failed
Load, never a usable value), Loaded (just read, unmodified), and
Loaded-Dirty (at least one of Fix, Compact, Import, Clean, Restore, Eb has
changed the buffer since the last Save). Save always returns the current buffer and resets the dirty
flag; it never fails. Dirty() reports which of Loaded/Loaded-Dirty the image
is in.

# Invariants this package maintains

Every exported mutating method other than Eb (a raw write that maintains
no invariant) either leaves the buffer fully consistent
(modules non-overlapping, header offsets correct, module and user-config
CRCs matching their content) or returns an error and leaves the buffer
unchanged — never a partially-applied mutation.

# Module identification

Static modules (ARM9Static, ARM7Static) are always LZ-compressed and
Feistel-encrypted. Secondary and resource modules (ARM9Secondary,
ARM7Secondary, Resources) are LZ or ASH depending on their first header
byte, and are never encrypted. RAM load addresses for ARM9Secondary,
ARM7Secondary, and Resources are not stored in the header; they are
recovered by the internal/ramscan heuristic, which is advisory — a failed
scan is reported as address zero plus a not-found flag, not an error.
*/
package fwimage
