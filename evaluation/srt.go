package evaluation

import (
	"regexp"
	"strings"
)

var srtIndexLine = regexp.MustCompile(`^\d+$`)

func srtBlocks(content string) [][]string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var blocks [][]string
	for _, block := range strings.Split(content, "\n\n") {
		blocks = append(blocks, strings.Split(strings.TrimSpace(block), "\n"))
	}
	return blocks
}

// ParseSrtToText joins the caption text of every block, dropping index and
// timing lines.
func ParseSrtToText(content string) string {
	var texts []string
	for _, lines := range srtBlocks(content) {
		if len(lines) >= 3 {
			texts = append(texts, strings.Join(lines[2:], " "))
		}
	}
	return strings.TrimSpace(strings.Join(texts, " "))
}

func IsValidSrt(content string) bool {
	for _, lines := range srtBlocks(content) {
		if len(lines) >= 3 && srtIndexLine.MatchString(lines[0]) && strings.Contains(lines[1], "-->") {
			return true
		}
	}
	return false
}
