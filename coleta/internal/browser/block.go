package browser

import "strings"

// DefaultBlockSignatures are the phrases the site's interstitials carry.
// Matching is case-insensitive substring over the rendered document.
var DefaultBlockSignatures = []string{
	"detectamos um comportamento incomum",
	"verificação de segurança",
	"complete o captcha",
	"are you a robot",
	"unusual traffic",
	"access denied",
}

// BlockDetector classifies rendered pages as blocked or clean.
type BlockDetector struct {
	signatures []string
}

// NewBlockDetector builds a detector; nil or empty signatures fall back
// to DefaultBlockSignatures.
func NewBlockDetector(signatures []string) *BlockDetector {
	if len(signatures) == 0 {
		signatures = DefaultBlockSignatures
	}
	lowered := make([]string, len(signatures))
	for i, s := range signatures {
		lowered[i] = strings.ToLower(s)
	}
	return &BlockDetector{signatures: lowered}
}

// Blocked reports whether the document is a block interstitial, and which
// signature matched.
func (d *BlockDetector) Blocked(doc string) (string, bool) {
	lowered := strings.ToLower(doc)
	for _, sig := range d.signatures {
		if strings.Contains(lowered, sig) {
			return sig, true
		}
	}
	return "", false
}
