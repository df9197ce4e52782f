package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"sigil-guard/internal/compose"
	"sigil-guard/internal/control"
	"sigil-guard/internal/generate"
	"sigil-guard/internal/match"
	"sigil-guard/internal/sigil"
	"sigil-guard/internal/style"
	"sigil-guard/internal/version"
)

// compositedClass labels variations whose geometry was restored by
// compositing rather than preserved by the generator.
const compositedClass = "Structure Preserved (Composited)"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:              "healthy",
		Version:             version.Version,
		ReplicateConfigured: s.cfg.ReplicateToken != "",
		AvailableStyles:     s.styles.Names(),
	})
}

func (s *Server) handleStyles(w http.ResponseWriter, r *http.Request) {
	base := generate.DefaultConfig()
	out := stylesResponse{Styles: make(map[string]styleInfo)}
	for _, st := range s.styles.Styles() {
		p := generate.ParamsFor(st, base)
		out.Styles[st.Name] = styleInfo{
			Name:              st.Name,
			DisplayName:       st.DisplayName,
			ControlnetType:    string(st.ControlType),
			ConditioningScale: p.ConditioningScale,
			DenoiseStrength:   p.DenoiseStrength,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePreprocess(w http.ResponseWriter, r *http.Request) {
	var req preprocessRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.SigilSVG == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("sigil_svg is required"))
		return
	}

	in, err := sigil.Detect(req.SigilSVG)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	base := control.DefaultParams()
	base.CanvasSize = s.cfg.CanvasSize
	p := req.Params.apply(base)
	if p.CanvasSize < 64 {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("canvas_size must be at least 64"))
		return
	}

	norm, trace, err := sigil.Normalize(in, p.CanvasSize)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	defer norm.Close()

	bundle, err := control.Build(norm, p)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	defer bundle.Close()

	controlB64, err := sigil.EncodeDataURL(bundle.Control)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	strokeB64, err := sigil.EncodeDataURL(bundle.StrokeMask)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	dilatedB64, err := sigil.EncodeDataURL(bundle.DilatedMask)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, preprocessResponse{
		ControlImageBase64: controlB64,
		StrokeMaskBase64:   strokeB64,
		DilatedMaskBase64:  dilatedB64,
		ProcessingInfo: processingInfo{
			Steps:         append(trace, bundle.Trace...),
			ContentBounds: bundle.ContentBounds,
			CanvasSize:    p.CanvasSize,
		},
	})
}

func (s *Server) handleStructureMatch(w http.ResponseWriter, r *http.Request) {
	var req structureMatchRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.OriginalMaskBase64 == "" || req.GeneratedImageBase64 == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("original_mask_base64 and generated_image_base64 are required"))
		return
	}

	mask, err := decodeRaster(req.OriginalMaskBase64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	defer mask.Close()

	cand, err := decodeRaster(req.GeneratedImageBase64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	defer cand.Close()

	cfg := match.DefaultConfig()
	if req.Method != "" {
		m, err := match.ParseExtraction(req.Method)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		cfg.Method = m
	}
	if req.Threshold > 0 {
		cfg.Threshold = req.Threshold
	}

	res, err := match.Score(mask, cand, cfg)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, structureMatchResponse{
		IoUScore:           res.IoU,
		EdgeOverlapScore:   res.EdgeOverlap,
		CombinedScore:      res.Combined,
		StructurePreserved: res.Preserved,
		Classification:     res.Class.String(),
	})
}

func (s *Server) handleComposite(w http.ResponseWriter, r *http.Request) {
	var req compositeRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.OriginalSigil == "" || req.GeneratedImageBase64 == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("original_sigil and generated_image_base64 are required"))
		return
	}

	st := s.styles.Default()
	if req.StyleName != "" {
		if found, ok := s.styles.Lookup(req.StyleName); ok {
			st = found
		}
	}
	opts := compositeOptionsFor(st)
	if req.BlendTexture != nil {
		opts.BlendTexture = *req.BlendTexture
	}
	if req.TextureStrength != nil {
		if *req.TextureStrength < 0 || *req.TextureStrength > 1 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("texture_strength must be in 0..1"))
			return
		}
		opts.TextureStrength = *req.TextureStrength
	}

	in, err := sigil.Detect(req.OriginalSigil)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	cand, err := decodeRaster(req.GeneratedImageBase64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	defer cand.Close()

	p := control.DefaultParams()
	p.CanvasSize = s.cfg.CanvasSize

	res, err := compose.Composite(in, cand, p, opts)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	defer res.Close()

	// Verify the painted geometry actually reads back out of the composite.
	confCfg := match.DefaultConfig()
	confCfg.Method = match.ExtractOtsu
	var conformance float64
	if scored, err := match.Score(res.BlendMask, res.Composite, confCfg); err == nil {
		conformance = scored.Combined
	}

	compositeB64, err := sigil.EncodeDataURL(res.Composite)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	backgroundB64, err := sigil.EncodeDataURL(res.Background)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	layerB64, err := sigil.EncodeDataURL(res.SigilLayer)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, compositeResponse{
		CompositeImageBase64: compositeB64,
		BackgroundOnlyBase64: backgroundB64,
		SigilLayerBase64:     layerB64,
		StrokeColor:          res.StrokeColor.Hex(),
		Conformance:          conformance,
		StructureGuaranteed:  res.StructureGuaranteed,
	})
}

func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	var req enhanceRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.SigilSVG == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("sigil_svg is required"))
		return
	}

	st := s.styles.Default()
	if req.StyleChoice != "" {
		var ok bool
		st, ok = s.styles.Lookup(req.StyleChoice)
		if !ok {
			s.writeError(w, http.StatusBadRequest,
				fmt.Errorf("unknown style %q, available: %v", req.StyleChoice, s.styles.Names()))
			return
		}
	}

	n := req.NumVariations
	if n == 0 {
		n = 4
	}
	if n < 1 || n > s.cfg.MaxVariations {
		s.writeError(w, http.StatusBadRequest,
			fmt.Errorf("num_variations must be between 1 and %d", s.cfg.MaxVariations))
		return
	}

	threshold := req.MinStructureScore
	if threshold == 0 {
		threshold = match.DefaultConfig().Threshold
	}
	if threshold < 0.5 || threshold > 1.0 {
		s.writeError(w, http.StatusBadRequest,
			fmt.Errorf("min_structure_score must be between 0.5 and 1.0"))
		return
	}

	in, err := sigil.Detect(req.SigilSVG)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	p := control.DefaultParams()
	p.CanvasSize = s.cfg.CanvasSize

	norm, _, err := sigil.Normalize(in, p.CanvasSize)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	defer norm.Close()

	bundle, err := control.Build(norm, p)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	defer bundle.Close()

	opts := generate.DefaultOptions()
	opts.Variations = n
	opts.MinPassing = s.cfg.MinPassing
	opts.Workers = s.cfg.Workers
	opts.Scoring.Threshold = threshold

	s.log.Info("enhance request",
		"user_id", req.UserID,
		"anchor_id", req.AnchorID,
		"style", st.Name,
		"variations", n,
		"auto_composite", req.AutoComposite)

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.GenerationTimeout())
	defer cancel()

	start := time.Now()
	orch := &generate.Orchestrator{Gen: s.gen, Opts: opts}
	run, err := orch.Run(ctx, bundle.Control, bundle.StrokeMask, st)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer run.Close()

	var composites []compose.Result
	defer func() {
		for i := range composites {
			composites[i].Close()
		}
	}()

	resp := enhanceResponse{
		Success:            true,
		Variations:         make([]variationResult, 0, len(run.Variations)),
		StyleApplied:       st.Name,
		PromptUsed:         st.Prompt,
		NegativePromptUsed: st.NegativePrompt,
		PassingCount:       run.PassingCount,
		BestVariationIndex: run.BestIndex,
		StructureThreshold: threshold,
	}

	for i := range run.Variations {
		v := &run.Variations[i]

		final := v.Image
		combined := v.Score.Combined
		preserved := v.Score.Preserved
		class := v.Score.Class.String()
		composited := false

		if req.AutoComposite && !v.Score.Preserved {
			cres, cerr := compose.Apply(bundle, v.Image, compositeOptionsFor(st))
			if cerr != nil {
				s.writeError(w, http.StatusInternalServerError, cerr)
				return
			}
			composites = append(composites, cres)

			final = cres.Composite
			composited = true
			preserved = true
			class = compositedClass
			if rescored, rerr := match.Score(bundle.StrokeMask, cres.Composite, opts.Scoring); rerr == nil {
				combined = rescored.Combined
			}
		}

		encoded, eerr := sigil.EncodeDataURL(final)
		if eerr != nil {
			s.writeError(w, http.StatusInternalServerError, eerr)
			return
		}

		resp.Variations = append(resp.Variations, variationResult{
			ImageBase64:         encoded,
			StructureMatchScore: v.Score.IoU,
			EdgeOverlapScore:    v.Score.EdgeOverlap,
			CombinedScore:       combined,
			StructurePreserved:  preserved,
			Classification:      class,
			WasComposited:       composited,
			Seed:                v.Seed,
		})
	}

	if encoded, err := sigil.EncodeDataURL(bundle.Control); err == nil {
		resp.ControlImageBase64 = encoded
	}
	resp.GenerationTimeMS = time.Since(start).Milliseconds()

	writeJSON(w, http.StatusOK, resp)
}

// compositeOptionsFor resolves a style's texture hints into composite options.
func compositeOptionsFor(st style.Style) compose.Options {
	opts := compose.DefaultOptions()
	if mode, err := compose.ParseMode(st.BlendMode); err == nil {
		opts.TextureMode = mode
	}
	if st.TextureStrength > 0 {
		opts.TextureStrength = st.TextureStrength
	}
	return opts
}
