package scrape

import "strings"

// BlockType describes the kind of anti-bot interstitial detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
)

// DetectBlock checks rendered page markup for an anti-bot interstitial
// served in place of the expected content.
func DetectBlock(markup string) (bool, BlockType) {
	lower := strings.ToLower(markup)

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, BlockCloudflare
	}

	if strings.Contains(lower, "g-recaptcha") ||
		strings.Contains(lower, "h-captcha") ||
		strings.Contains(lower, "complete the captcha") {
		return true, BlockCaptcha
	}

	return false, BlockNone
}
