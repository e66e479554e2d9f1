// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package detect runs a pretrained MobileNet-SSD object detector over
// image bytes and annotates ImageRecords with the objects found.
package detect

import (
	"sort"

	"github.com/pdiddy/image-engine/pkg/types"
)

// DefaultConfidenceThreshold is the minimum confidence for a detection
// to be kept.
const DefaultConfidenceThreshold = 0.5

// detectionStride is the number of floats per detection record in the
// SSD output blob: [batchID, classID, confidence, left, top, right, bottom].
const detectionStride = 7

// classLabels are the 20 PASCAL VOC classes the MobileNet-SSD Caffe model
// predicts, with "background" at index 0.
var classLabels = []string{
	"background",
	"aeroplane",
	"bicycle",
	"bird",
	"boat",
	"bottle",
	"bus",
	"car",
	"cat",
	"chair",
	"cow",
	"diningtable",
	"dog",
	"horse",
	"motorbike",
	"person",
	"pottedplant",
	"sheep",
	"sofa",
	"train",
	"tvmonitor",
}

// Detector finds objects in an encoded image. Implementations: the gocv
// MobileNet-SSD network, and test fakes.
type Detector interface {
	// Detect decodes imageData and returns the objects found in it.
	Detect(imageData []byte) ([]types.Detection, error)

	// Close releases the underlying network resources.
	Close() error
}

// classLabel maps an SSD class ID to its VOC label. Out-of-range IDs and
// the background class return "".
func classLabel(classID int) string {
	if classID <= 0 || classID >= len(classLabels) {
		return ""
	}
	return classLabels[classID]
}

// decodeDetections converts the raw SSD output floats into Detections.
// raw holds detectionStride floats per candidate; normalized boxes are
// scaled to imgWidth x imgHeight pixels and clamped to the image bounds.
// Candidates below threshold, with unknown class IDs, or with empty boxes
// are dropped.
func decodeDetections(raw []float32, imgWidth, imgHeight int, threshold float64) []types.Detection {
	var detections []types.Detection

	for i := 0; i+detectionStride <= len(raw); i += detectionStride {
		confidence := float64(raw[i+2])
		if confidence < threshold {
			continue
		}

		label := classLabel(int(raw[i+1]))
		if label == "" {
			continue
		}

		left := clamp(int(raw[i+3]*float32(imgWidth)), 0, imgWidth)
		top := clamp(int(raw[i+4]*float32(imgHeight)), 0, imgHeight)
		right := clamp(int(raw[i+5]*float32(imgWidth)), 0, imgWidth)
		bottom := clamp(int(raw[i+6]*float32(imgHeight)), 0, imgHeight)

		if right <= left || bottom <= top {
			continue
		}

		detections = append(detections, types.Detection{
			Label:      label,
			Confidence: confidence,
			X:          left,
			Y:          top,
			Width:      right - left,
			Height:     bottom - top,
		})
	}
	return detections
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// UniqueLabels returns the sorted set of labels appearing in detections.
func UniqueLabels(detections []types.Detection) []string {
	seen := make(map[string]bool)
	var labels []string
	for _, d := range detections {
		if !seen[d.Label] {
			seen[d.Label] = true
			labels = append(labels, d.Label)
		}
	}
	sort.Strings(labels)
	return labels
}
