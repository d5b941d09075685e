package port

import "context"

// ExtractionInput carries everything sent to the inference engine for one
// logical document. Images are data URIs in page order.
type ExtractionInput struct {
	Images      []string
	Instruction string
}

// ExtractionOutput is the engine's raw reply.
type ExtractionOutput struct {
	RawText   string
	ModelUsed string
	Provider  string
}

// ExtractionClient submits page images to a multimodal inference engine.
// Implementations make exactly one request per call and never retry.
type ExtractionClient interface {
	Extract(ctx context.Context, input ExtractionInput) (*ExtractionOutput, error)
}
