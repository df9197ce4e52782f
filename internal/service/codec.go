package service

import (
	"encoding/json"
	"fmt"
	"net/http"

	"gocv.io/x/gocv"

	"sigil-guard/internal/control"
	"sigil-guard/internal/sigil"
	"sigil-guard/pkg/geometry"
)

// Request and response bodies. Field names match the upstream consumers.

type preprocessRequest struct {
	SigilSVG string          `json:"sigil_svg"`
	Params   *paramsOverride `json:"params,omitempty"`
}

// paramsOverride patches selected control parameters for one request.
type paramsOverride struct {
	CanvasSize       *int     `json:"canvas_size"`
	StrokeMultiplier *float64 `json:"stroke_multiplier"`
	PaddingPercent   *float64 `json:"padding_percent"`
	MaskDilation     *int     `json:"mask_dilation"`
}

func (o *paramsOverride) apply(p control.Params) control.Params {
	if o == nil {
		return p
	}
	if o.CanvasSize != nil {
		p.CanvasSize = *o.CanvasSize
	}
	if o.StrokeMultiplier != nil {
		p.StrokeMultiplier = *o.StrokeMultiplier
	}
	if o.PaddingPercent != nil {
		p.PaddingPercent = *o.PaddingPercent
	}
	if o.MaskDilation != nil {
		p.MaskDilation = *o.MaskDilation
	}
	return p
}

type processingInfo struct {
	Steps         []string         `json:"steps"`
	ContentBounds geometry.RectInt `json:"content_bounds"`
	CanvasSize    int              `json:"canvas_size"`
}

type preprocessResponse struct {
	ControlImageBase64 string         `json:"control_image_base64"`
	StrokeMaskBase64   string         `json:"stroke_mask_base64"`
	DilatedMaskBase64  string         `json:"dilated_mask_base64"`
	ProcessingInfo     processingInfo `json:"processing_info"`
}

type structureMatchRequest struct {
	OriginalMaskBase64   string  `json:"original_mask_base64"`
	GeneratedImageBase64 string  `json:"generated_image_base64"`
	Method               string  `json:"method,omitempty"`
	Threshold            float64 `json:"threshold,omitempty"`
}

type structureMatchResponse struct {
	IoUScore           float64 `json:"iou_score"`
	EdgeOverlapScore   float64 `json:"edge_overlap_score"`
	CombinedScore      float64 `json:"combined_score"`
	StructurePreserved bool    `json:"structure_preserved"`
	Classification     string  `json:"classification"`
}

type compositeRequest struct {
	OriginalSigil        string   `json:"original_sigil"`
	GeneratedImageBase64 string   `json:"generated_image_base64"`
	StyleName            string   `json:"style_name"`
	BlendTexture         *bool    `json:"blend_texture"`
	TextureStrength      *float64 `json:"texture_strength"`
}

type compositeResponse struct {
	CompositeImageBase64 string  `json:"composite_image_base64"`
	BackgroundOnlyBase64 string  `json:"background_only_base64"`
	SigilLayerBase64     string  `json:"sigil_layer_base64"`
	StrokeColor          string  `json:"stroke_color"`
	Conformance          float64 `json:"conformance"`
	StructureGuaranteed  bool    `json:"structure_guaranteed"`
}

type enhanceRequest struct {
	SigilSVG          string  `json:"sigil_svg"`
	StyleChoice       string  `json:"style_choice"`
	UserID            string  `json:"user_id"`
	AnchorID          string  `json:"anchor_id"`
	NumVariations     int     `json:"num_variations"`
	AutoComposite     bool    `json:"auto_composite"`
	MinStructureScore float64 `json:"min_structure_score"`
}

type variationResult struct {
	ImageBase64         string  `json:"image_base64"`
	StructureMatchScore float64 `json:"structure_match_score"`
	EdgeOverlapScore    float64 `json:"edge_overlap_score"`
	CombinedScore       float64 `json:"combined_score"`
	StructurePreserved  bool    `json:"structure_preserved"`
	Classification      string  `json:"classification"`
	WasComposited       bool    `json:"was_composited"`
	Seed                int64   `json:"seed"`
}

type enhanceResponse struct {
	Success            bool              `json:"success"`
	Variations         []variationResult `json:"variations"`
	ControlImageBase64 string            `json:"control_image_base64,omitempty"`
	StyleApplied       string            `json:"style_applied"`
	PromptUsed         string            `json:"prompt_used"`
	NegativePromptUsed string            `json:"negative_prompt_used"`
	GenerationTimeMS   int64             `json:"generation_time_ms"`
	PassingCount       int               `json:"passing_count"`
	BestVariationIndex int               `json:"best_variation_index"`
	StructureThreshold float64           `json:"structure_threshold"`
}

type healthResponse struct {
	Status              string   `json:"status"`
	Version             string   `json:"version"`
	ReplicateConfigured bool     `json:"replicate_configured"`
	AvailableStyles     []string `json:"available_styles"`
}

type styleInfo struct {
	Name              string  `json:"name"`
	DisplayName       string  `json:"display_name"`
	ControlnetType    string  `json:"controlnet_type"`
	ConditioningScale float64 `json:"conditioning_scale"`
	DenoiseStrength   float64 `json:"denoise_strength"`
}

type stylesResponse struct {
	Styles map[string]styleInfo `json:"styles"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// decodeBody parses a JSON request body with the configured size cap.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes())
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// decodeRaster accepts a data URL or bare base64 raster and decodes it to a
// color Mat.
func decodeRaster(field string) (gocv.Mat, error) {
	in, err := sigil.Detect(field)
	if err != nil {
		return gocv.NewMat(), err
	}
	if in.Kind != sigil.KindEncodedRaster && in.Kind != sigil.KindRasterBytes {
		return gocv.NewMat(), fmt.Errorf("%w: expected raster image data", sigil.ErrInvalidInputKind)
	}
	img, err := gocv.IMDecode(in.Raster, gocv.IMReadColor)
	if err != nil || img.Empty() {
		return gocv.NewMat(), fmt.Errorf("%w: undecodable raster payload", sigil.ErrInvalidInputKind)
	}
	return img, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		s.log.Error("request failed", "error", err)
	} else {
		s.log.Warn("request rejected", "error", err)
	}
	writeJSON(w, status, errorResponse{Detail: err.Error()})
}
