// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package detect

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"github.com/pdiddy/image-engine/pkg/types"
)

// Blob preprocessing parameters for the MobileNet-SSD Caffe model: the
// network takes 300x300 inputs scaled by 1/127.5 around a mean of 127.5.
const (
	blobScale = 0.007843
	blobSize  = 300
	blobMean  = 127.5
)

// MobileNetSSD wraps the pretrained Caffe MobileNet-SSD network loaded
// through the OpenCV DNN module.
type MobileNetSSD struct {
	net       gocv.Net
	threshold float64
}

// NewMobileNetSSD loads the network from the prototxt description and
// caffemodel weights named in cfg. Both files must exist; the model is
// distributed separately from this repository.
func NewMobileNetSSD(cfg types.DetectionConfig) (*MobileNetSSD, error) {
	for _, path := range []string{cfg.PrototxtPath, cfg.ModelPath} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("model file %s: %w", path, err)
		}
	}

	net := gocv.ReadNetFromCaffe(cfg.PrototxtPath, cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("loading network from %s / %s", cfg.PrototxtPath, cfg.ModelPath)
	}

	threshold := cfg.ConfidenceThreshold
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}

	return &MobileNetSSD{net: net, threshold: threshold}, nil
}

// Detect decodes imageData, runs a forward pass, and returns the objects
// found above the confidence threshold.
func (m *MobileNetSSD) Detect(imageData []byte) ([]types.Detection, error) {
	mat, err := gocv.IMDecode(imageData, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	blob := gocv.BlobFromImage(mat, blobScale, image.Pt(blobSize, blobSize),
		gocv.NewScalar(blobMean, blobMean, blobMean, 0), false, false)
	defer blob.Close()

	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	defer output.Close()

	raw := make([]float32, output.Total())
	for i := range raw {
		raw[i] = output.GetFloatAt(0, i)
	}

	return decodeDetections(raw, mat.Cols(), mat.Rows(), m.threshold), nil
}

// Close releases the network.
func (m *MobileNetSSD) Close() error {
	return m.net.Close()
}
