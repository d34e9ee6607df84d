package ai

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/IshaanNene/rallybrief/internal/types"
)

// NoNewsText stands in for the news section when no news file is available.
const NoNewsText = "No news information available."

// LoadPrompt reads the analysis prompt from dir/file.
func LoadPrompt(dir, file string) (string, error) {
	path := filepath.Join(dir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: prompt file %s", types.ErrNotFound, path)
		}
		return "", fmt.Errorf("read prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt file %s: %w", path, types.ErrEmptyResult)
	}
	return prompt, nil
}

// BuildPrompt combines the instructions with the PDF and news texts.
func BuildPrompt(instructions, pdfText, newsText string) string {
	if strings.TrimSpace(newsText) == "" {
		newsText = NoNewsText
	}
	return instructions + "\n\nPDF Content:\n" + pdfText + "\nText file Content:\n" + newsText
}
