package style

const defaultName = "watercolor"

// Every preset opens with the same geometry contract and shares one negative
// vocabulary; only the surface-treatment wording varies.
const (
	promptBase = "Restore and beautify the existing sigil. Preserve exact geometry and stroke paths. "

	negativeBase = "extra lines, decorative circle, mandala, compass, runes, glyphs, occult seal, " +
		"emblem, logo redesign, reinterpretation, frame, border, symmetry embellishment, " +
		"altered shape, new symbols, added elements, changed geometry, "
)

var builtins = []Style{
	{
		Name:        "watercolor",
		DisplayName: "Watercolor",
		ControlType: ControlLineart,
		Prompt: promptBase +
			"Apply soft watercolor texture as surface treatment only. Translucent washes, " +
			"subtle color bleeding at edges. Paper texture visible. The sigil linework remains unchanged. " +
			"High-quality artistic enhancement, mystical symbol preserved exactly.",
		NegativePrompt:  negativeBase + "distorted lines, thick outlines, cartoon, 3d render, photograph",
		DenoiseStrength: 0.30,
		BlendMode:       "soft_light",
		TextureStrength: 0.2,
	},
	{
		Name:        "ink_brush",
		DisplayName: "Ink Brush",
		ControlType: ControlLineart,
		Prompt: promptBase +
			"Apply traditional ink brush texture as surface treatment only. Sumi-e aesthetic, " +
			"ink wash gradients, rice paper texture. Zen calligraphy feel. " +
			"The sigil structure remains precisely as drawn.",
		NegativePrompt:  negativeBase + "digital, modern, color",
		DenoiseStrength: 0.25,
		BlendMode:       "multiply",
		TextureStrength: 0.3,
	},
	{
		Name:        "sacred_geometry",
		DisplayName: "Sacred Geometry",
		ControlType: ControlCanny,
		Prompt: promptBase +
			"Apply golden metallic sheen as surface treatment only. Sacred geometry aesthetic, " +
			"precise lines with subtle glow. Mathematical perfection in texture, not form. " +
			"The original sigil geometry is untouched.",
		NegativePrompt:    negativeBase + "organic, messy",
		ConditioningScale: 1.25,
		DenoiseStrength:   0.22,
		BlendMode:         "overlay",
		TextureStrength:   0.15,
	},
	{
		Name:        "gold_leaf",
		DisplayName: "Gold Leaf",
		ControlType: ControlCanny,
		Prompt: promptBase +
			"Apply gold leaf gilding texture as surface treatment only. Illuminated manuscript style, " +
			"precious metal sheen, ornate texture on the existing lines. Medieval luxury aesthetic. " +
			"The sigil shape remains exactly as designed.",
		NegativePrompt:    negativeBase + "modern, photography",
		ConditioningScale: 1.20,
		DenoiseStrength:   0.25,
		BlendMode:         "overlay",
		TextureStrength:   0.25,
	},
	{
		Name:        "cosmic",
		DisplayName: "Cosmic",
		ControlType: ControlLineart,
		Prompt: promptBase +
			"Apply ethereal cosmic glow as surface treatment only. Nebula colors, starlight, " +
			"celestial energy emanating from the unchanged sigil lines. Deep space background. " +
			"The sigil structure is preserved exactly.",
		NegativePrompt:  negativeBase + "planets, faces, realistic photo",
		DenoiseStrength: 0.32,
		BlendMode:       "soft_light",
		TextureStrength: 0.3,
	},
	{
		Name:        "minimal_line",
		DisplayName: "Minimal Line",
		ControlType: ControlCanny,
		Prompt: promptBase +
			"Apply clean minimalist treatment as surface polish only. Crisp precise lines, " +
			"subtle paper texture, modern graphic design aesthetic. " +
			"The sigil geometry is preserved with absolute precision.",
		NegativePrompt:    negativeBase + "texture, shading, embellishment, ornate",
		ConditioningScale: 1.30,
		DenoiseStrength:   0.18,
		BlendMode:         "multiply",
		TextureStrength:   0.1,
	},
}
