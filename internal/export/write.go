package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

var (
	ErrInvalidOutputDir = errors.New("invalid output_dir")
	ErrNoClips          = errors.New("no approved markers to export")
)

// SanitizeName keeps letters, digits and a few punctuation marks, replacing
// everything else with '_' and dropping control characters.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsControl(r):
		case unicode.IsLetter(r), unicode.IsDigit(r), strings.ContainsRune(" -_.,()", r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if runes := []rune(cleaned); maxLen > 0 && len(runes) > maxLen {
		cleaned = string(runes[:maxLen])
	}
	return cleaned
}

// ValidateOutputDir requires an existing, clean directory path without
// parent references.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: required", ErrInvalidOutputDir)
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("%w: path traversal", ErrInvalidOutputDir)
		}
	}
	if filepath.Clean(dir) != dir {
		return fmt.Errorf("%w: must be a clean path", ErrInvalidOutputDir)
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: does not exist", ErrInvalidOutputDir)
		}
		return fmt.Errorf("%w: %v", ErrInvalidOutputDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: not a directory", ErrInvalidOutputDir)
	}
	return nil
}

// WriteEDL validates req, renders clips and writes <project>.edl into the
// output directory. fallbackName names the file when the project name is
// empty after sanitising.
func WriteEDL(req Request, clips []Clip, skipped []string, frameRate float64, fallbackName string) (*Response, error) {
	if err := ValidateOutputDir(req.OutputDir); err != nil {
		return nil, err
	}
	if len(clips) == 0 {
		return nil, ErrNoClips
	}

	name := SanitizeName(req.ProjectName, 120)
	if name == "" {
		name = SanitizeName(fallbackName, 120)
	}
	if name == "" {
		name = "markerlane_export"
	}
	if req.FrameRate > 0 {
		frameRate = req.FrameRate
	}

	outputPath := filepath.Join(req.OutputDir, name+".edl")
	if err := os.WriteFile(outputPath, []byte(GenerateEDL(clips, name, frameRate)), 0o644); err != nil {
		return nil, fmt.Errorf("write export file: %w", err)
	}

	return &Response{
		Status:     "ok",
		Format:     "edl",
		OutputPath: outputPath,
		ClipCount:  len(clips),
		Skipped:    skipped,
	}, nil
}
