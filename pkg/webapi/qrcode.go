package webapi

import (
	qrcode "github.com/skip2/go-qrcode"
)

// GenerateQRCodePNG encodes content (a wownero: payment link) as a PNG.
func GenerateQRCodePNG(content string, size int) ([]byte, error) {
	pngBytes, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, err
	}
	return pngBytes, nil
}
