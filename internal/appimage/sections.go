package appimage

import (
	"bufio"
	"bytes"
	"debug/elf"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Section is one row of a binary's section table.
type Section struct {
	Name   string
	Size   int64
	Offset int64
}

// SectionLister lists the sections of a binary file.
type SectionLister interface {
	Sections(path string) ([]Section, error)
}

// CommandRunner is an interface for running external commands.
// This allows for mocking in tests.
type CommandRunner interface {
	Run(name string, args ...string) ([]byte, error)
}

// DefaultCommandRunner uses os/exec to run commands.
type DefaultCommandRunner struct{}

// Run executes a command and returns its standard output.
func (r *DefaultCommandRunner) Run(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	return cmd.Output()
}

// ObjdumpLister lists sections by parsing the output of `objdump -h`.
type ObjdumpLister struct {
	runner CommandRunner
	binary string
}

// NewObjdumpLister creates a lister that runs the given objdump binary.
// An empty binary selects FindObjdump().
func NewObjdumpLister(binary string) *ObjdumpLister {
	if binary == "" {
		binary = FindObjdump()
	}
	return &ObjdumpLister{runner: &DefaultCommandRunner{}, binary: binary}
}

// NewObjdumpListerWithRunner creates an ObjdumpLister with a custom command runner (for testing).
func NewObjdumpListerWithRunner(runner CommandRunner, binary string) *ObjdumpLister {
	return &ObjdumpLister{runner: runner, binary: binary}
}

// Sections runs objdump and parses its section table.
func (l *ObjdumpLister) Sections(path string) ([]Section, error) {
	out, err := l.runner.Run(l.binary, "-h", path)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", l.binary, err)
	}
	return parseObjdumpSections(out)
}

// parseObjdumpSections parses the section rows of `objdump -h` output.
//
// A row looks like:
//
//	Idx Name          Size      VMA               LMA               File off  Algn
//	  9 .upd_info     00000400  0000000000000000  0000000000000000  00019ae8  2**0
//
// Rows are recognised by a leading decimal index; flag lines and headers are skipped.
func parseObjdumpSections(out []byte) ([]Section, error) {
	var sections []Section

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 7 {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}

		size, err := strconv.ParseInt(fields[2], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid size %q for section %s: %w", fields[2], fields[1], err)
		}
		offset, err := strconv.ParseInt(fields[5], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid file offset %q for section %s: %w", fields[5], fields[1], err)
		}

		sections = append(sections, Section{Name: fields[1], Size: size, Offset: offset})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read objdump output: %w", err)
	}

	return sections, nil
}

// FindObjdump returns the objdump binary to use. An objdump shipped next to
// the running executable wins over the one on PATH.
func FindObjdump() string {
	if exe, err := os.Executable(); err == nil {
		bundled := filepath.Join(filepath.Dir(exe), "objdump")
		if info, err := os.Stat(bundled); err == nil && !info.IsDir() {
			return bundled
		}
	}
	return "objdump"
}

// ObjdumpAvailable reports whether the given objdump binary can be executed.
func ObjdumpAvailable(binary string) bool {
	if filepath.IsAbs(binary) {
		info, err := os.Stat(binary)
		return err == nil && !info.IsDir()
	}
	_, err := exec.LookPath(binary)
	return err == nil
}

// ELFLister reads the section header table directly.
type ELFLister struct{}

// Sections lists the sections of an ELF file.
func (ELFLister) Sections(path string) ([]Section, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ELF headers: %w", err)
	}
	defer func() { _ = f.Close() }()

	sections := make([]Section, 0, len(f.Sections))
	for _, s := range f.Sections {
		sections = append(sections, Section{
			Name:   s.Name,
			Size:   int64(s.Size),
			Offset: int64(s.Offset),
		})
	}
	return sections, nil
}

// NewSectionLister picks a lister by name: "objdump", "elf" or "auto".
// In auto mode objdump is used when available, the ELF reader otherwise.
func NewSectionLister(kind, objdumpPath string) (SectionLister, error) {
	switch kind {
	case "objdump":
		return NewObjdumpLister(objdumpPath), nil
	case "elf":
		return ELFLister{}, nil
	case "auto", "":
		binary := objdumpPath
		if binary == "" {
			binary = FindObjdump()
		}
		if ObjdumpAvailable(binary) {
			return NewObjdumpLister(binary), nil
		}
		return ELFLister{}, nil
	default:
		return nil, fmt.Errorf("unknown section lister: %s", kind)
	}
}
