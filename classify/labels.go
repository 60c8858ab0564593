package classify

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// UnknownLabel is reported when the label list failed to load or a class
// index falls outside it.
const UnknownLabel = "Unknown"

// LoadLabels reads a newline-delimited label asset. Lines are trimmed and
// blank lines discarded; the remaining lines are the ordered label set
// indexed by class position.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open label asset: %w", err)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read label asset: %w", err)
	}
	return labels, nil
}
