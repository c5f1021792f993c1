package qrcode

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	maxSize     = 1024
)

// QRService renders checkout web URLs as QR codes so the buyer can finish on
// another device.
type QRService struct {
	level qrcode.RecoveryLevel
}

func NewQRService() *QRService {
	return &QRService{
		level: qrcode.Medium,
	}
}

// GenerateQRCode returns a PNG for url. Sizes outside (0, 1024] fall back to DefaultSize.
func (s *QRService) GenerateQRCode(url string, size int) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("qr code url is empty")
	}
	if size <= 0 || size > maxSize {
		size = DefaultSize
	}

	png, err := qrcode.Encode(url, s.level, size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code PNG: %w", err)
	}

	return png, nil
}
