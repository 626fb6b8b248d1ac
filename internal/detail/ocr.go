package detail

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// OCR shells out to an externally installed tesseract executable. The
// language set is tuned for mixed Chinese/English notices. An empty
// command path disables OCR: every call becomes a clean no-op rather
// than a failure, which is the intended production default.
type OCR struct {
	cmd         string
	tessdataDir string
	languages   string
}

// NewOCR builds an OCR runner. languages defaults to chi_sim+eng.
func NewOCR(cmd, tessdataDir, languages string) *OCR {
	if languages == "" {
		languages = "chi_sim+eng"
	}
	return &OCR{cmd: cmd, tessdataDir: tessdataDir, languages: languages}
}

// Enabled reports whether an OCR executable is configured.
func (o *OCR) Enabled() bool {
	return o != nil && o.cmd != ""
}

// Run feeds the image to tesseract over stdin and returns the trimmed
// recognized text.
func (o *OCR) Run(ctx context.Context, image []byte) (string, error) {
	if !o.Enabled() {
		return "", nil
	}
	args := []string{"-", "-", "-l", o.languages}
	if o.tessdataDir != "" {
		args = append(args, "--tessdata-dir", o.tessdataDir)
	}
	cmd := exec.CommandContext(ctx, o.cmd, args...)
	cmd.Stdin = bytes.NewReader(image)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(errOut.String()))
	}
	return strings.TrimSpace(out.String()), nil
}
