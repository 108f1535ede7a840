package embedding

import (
	"path/filepath"
	"strings"
)

var pathSeparators = strings.NewReplacer("_", " ", "-", " ")

// PathToText turns a file path into a short caption for text embedding: every path
// component without its extension, with '_' and '-' replaced by spaces, lowercased and
// joined by single spaces. "/Samples/Drums/Kick_01-hard.wav" becomes
// "samples drums kick 01 hard".
func PathToText(path string) string {
	clean := filepath.ToSlash(filepath.Clean(path))
	parts := strings.Split(clean, "/")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSuffix(p, filepath.Ext(p))
		p = strings.ToLower(pathSeparators.Replace(p))
		if f := strings.Fields(p); len(f) > 0 {
			tokens = append(tokens, strings.Join(f, " "))
		}
	}
	return strings.Join(tokens, " ")
}
