package fetcher

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of anti-bot interstitial detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// interstitialMaxBytes bounds the body size that is inspected for
// challenge markers. Real listing pages are far larger and routinely embed
// captcha widgets for the contact form.
const interstitialMaxBytes = 32 << 10

// DetectBlock checks a successful response for signs that the source
// served a challenge page instead of the requested document.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if resp.Header.Get("cf-mitigated") == "challenge" {
		return true, BlockCloudflare
	}

	if len(body) > interstitialMaxBytes {
		return false, BlockNone
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, BlockCloudflare
	}

	if strings.Contains(lower, "captcha-delivery") ||
		strings.Contains(lower, "recaptcha") ||
		strings.Contains(lower, "hcaptcha") ||
		strings.Contains(lower, "captcha") {
		return true, BlockCaptcha
	}

	if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") &&
		!strings.Contains(lower, "<h1") {
		return true, BlockJSShell
	}

	return false, BlockNone
}
