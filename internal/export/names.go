package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/audiolibrelab/irdecode/internal/decode"
)

// SanitizeName turns free text into a C identifier fragment: spaces and
// hyphens become underscores and anything other than ASCII letters, digits
// and underscores is dropped. A leading digit gets an "ir_" prefix.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == ' ' || r == '-':
			b.WriteByte('_')
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return ""
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "ir_" + s
	}
	return s
}

var (
	modeWords  = []string{"auto", "cool", "heat", "dry", "fan"}
	powerWords = []string{"power", "on", "off"}
)

// SuggestName derives a command name from the capture file name. When the
// file name says nothing about temperature, mode or power and the bytes
// decode, the decoded power state, mode and setpoint are appended, e.g.
// "capture3" becomes "capture3_on_cool_24c".
func SuggestName(b decode.CommandBytes, sourcePath string) string {
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	lower := strings.ToLower(base)
	name := SanitizeName(lower)
	if name == "" {
		name = "command"
	}

	cmd, err := decode.DecodeCommand(b)
	if err != nil {
		return name
	}
	if mentionsTemperature(lower) || containsAny(lower, modeWords) || containsAny(lower, powerWords) {
		return name
	}

	name += "_" + strings.ToLower(cmd.Power.String())
	if cmd.Mode.Known() && cmd.Mode != decode.ModeAuto {
		name += "_" + strings.ToLower(cmd.Mode.String())
	}
	if cmd.Temperature.Valid {
		name += fmt.Sprintf("_%dc", cmd.Temperature.Celsius)
	}
	return name
}

func mentionsTemperature(s string) bool {
	for t := decode.MinTemperature; t <= decode.MaxTemperature; t++ {
		if strings.Contains(s, fmt.Sprint(t)) {
			return true
		}
	}
	return false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
