package session

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// qrDataURI renders a pairing challenge into a PNG data URI the dashboard
// can drop straight into an <img> tag.
func qrDataURI(challenge string) (string, error) {
	png, err := qrcode.Encode(challenge, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
