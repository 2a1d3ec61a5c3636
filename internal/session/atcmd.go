package session

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gofer/internal/gemini"
	"gofer/internal/logging"
	"gofer/internal/tools"
)

var atRef = regexp.MustCompile(`@(\S+)`)

// ExpandAtCommands turns @path references in a prompt into structured text
// parts carrying the referenced file contents, so the model sees the files
// inline. Paths that cannot be read (missing, ignored, outside the
// workspace) are left in the prompt verbatim.
func ExpandAtCommands(prompt, targetDir string, ignorer *tools.Ignorer) []gemini.Part {
	if !strings.Contains(prompt, "@") {
		return gemini.TextPart(prompt)
	}

	var parts []gemini.Part
	appendText := func(text string) {
		if text == "" {
			return
		}
		// Merge adjacent text into one part to keep the message compact.
		if n := len(parts); n > 0 && parts[n-1].Text != "" {
			parts[n-1].Text += text
			return
		}
		parts = append(parts, gemini.Part{Text: text})
	}

	last := 0
	for _, loc := range atRef.FindAllStringSubmatchIndex(prompt, -1) {
		start, end := loc[0], loc[1]
		ref := prompt[loc[2]:loc[3]]
		appendText(prompt[last:start])
		last = end

		content, ok := readAtReference(ref, targetDir, ignorer)
		if !ok {
			appendText(prompt[start:end])
			continue
		}
		appendText(fmt.Sprintf("\n--- Content of %s ---\n%s\n--- End of %s ---\n", ref, content, ref))
	}
	appendText(prompt[last:])

	if len(parts) == 0 {
		return gemini.TextPart(prompt)
	}
	return parts
}

func readAtReference(ref, targetDir string, ignorer *tools.Ignorer) (string, bool) {
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(targetDir, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(targetDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	if ignorer != nil && ignorer.IsIgnored(path) {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logging.SessionError("Could not read @-referenced file %s: %v", ref, err)
		return "", false
	}
	return string(data), true
}
