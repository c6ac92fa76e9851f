package debugimg

import (
	"image"
	"time"
)

// Job is one image waiting to be written.
type Job struct {
	Image       image.Image
	Label       string
	SubmittedAt time.Time
}

// Queue accepts images for asynchronous saving.
type Queue interface {
	Enqueue(img image.Image, label string) bool
}
