// Package qr generates the scannable code attached to each invitation.
package qr

import (
	"fmt"

	"github.com/google/uuid"
	goqrcode "github.com/skip2/go-qrcode"
)

const DefaultSize = 250

// Encoder turns a payload into an image.
type Encoder interface {
	Encode(payload string) ([]byte, error)
	ContentType() string
}

// PNGEncoder renders square PNG codes with medium error correction.
type PNGEncoder struct {
	Size int
}

// NewPNGEncoder returns an encoder producing size x size images.
func NewPNGEncoder(size int) *PNGEncoder {
	if size <= 0 {
		size = DefaultSize
	}
	return &PNGEncoder{Size: size}
}

func (e *PNGEncoder) Encode(payload string) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("qr: empty payload")
	}
	png, err := goqrcode.Encode(payload, goqrcode.Medium, e.Size)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	return png, nil
}

func (e *PNGEncoder) ContentType() string { return "image/png" }

// NewToken returns a fresh random payload. It never encodes the invitation id,
// so codes do not leak the event's sequence.
func NewToken() string {
	return uuid.NewString()
}
