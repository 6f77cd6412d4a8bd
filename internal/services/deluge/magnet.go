package deluge

import (
	"encoding/base32"
	"encoding/hex"
	"net/url"
	"strings"
)

// InfoHash extracts the BTIH info hash from a magnet URI, handling both the
// 40-character hex form and the older 32-character base32 form. The hash
// doubles as the transfer handle since Deluge identifies torrents by it.
func InfoHash(magnetURL string) (string, bool) {
	parsed, err := url.Parse(magnetURL)
	if err != nil || parsed.Scheme != "magnet" {
		return "", false
	}

	for _, xt := range parsed.Query()["xt"] {
		hash, ok := strings.CutPrefix(xt, "urn:btih:")
		if !ok {
			continue
		}
		switch len(hash) {
		case 40:
			if _, err := hex.DecodeString(hash); err == nil {
				return strings.ToLower(hash), true
			}
		case 32:
			raw, err := base32.StdEncoding.DecodeString(strings.ToUpper(hash))
			if err == nil {
				return hex.EncodeToString(raw), true
			}
		}
	}
	return "", false
}
