package genai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"strconv"
	"strings"

	_ "github.com/kolesa-team/go-webp/decoder"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"portraitstudio/internal/domain"
	"portraitstudio/internal/infra"
)

const defaultModel = "gemini-2.5-flash-image"

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey string
	Model  string
	Logger *infra.Logger

	// Models overrides the SDK model service. Tests use it to avoid the network.
	Models contentGenerator
}

// contentGenerator is the subset of the SDK's model service the client needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client turns a photo and a style instruction into a stylized image using
// Gemini's image model. Without an API key it renders a deterministic tinted
// copy of the photo locally so the rest of the flow stays usable in
// development.
type Client struct {
	model  string
	models contentGenerator
	logger *infra.Logger
}

// NewClient constructs a Gemini client with sane defaults.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}

	models := opts.Models
	if models == nil {
		if key := strings.TrimSpace(opts.APIKey); key != "" {
			sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
				APIKey:  key,
				Backend: genai.BackendGeminiAPI,
			})
			if err != nil {
				return nil, fmt.Errorf("genai: create client: %w", err)
			}
			models = sdk.Models
		}
	}

	return &Client{model: model, models: models, logger: logger}, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// Synthetic reports whether images are rendered locally instead of remotely.
func (c *Client) Synthetic() bool {
	return c.models == nil
}

// Transform sends the photo and instruction to the model and returns the
// first inline image of the response.
func (c *Client) Transform(ctx context.Context, src domain.Image, instruction string) (domain.Image, error) {
	if err := ctx.Err(); err != nil {
		return domain.Image{}, err
	}
	if len(src.Data) == 0 {
		return domain.Image{}, errors.New("genai: empty source image")
	}
	if c.models == nil {
		return c.syntheticImage(src, instruction)
	}

	mime := src.MIME
	if mime == "" {
		mime = "image/png"
	}
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			genai.NewPartFromBytes(src.Data, mime),
			genai.NewPartFromText(instruction),
		},
	}}
	resp, err := c.models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return domain.Image{}, err
	}

	out, ok := firstInlineImage(resp)
	if !ok {
		return domain.Image{}, errors.New("no image data received from AI model")
	}
	out.Width, out.Height = decodeImageDimensions(out.Data)

	c.logger.Debug().
		Str("model", c.model).
		Int("bytes", len(out.Data)).
		Msg("genai: generated remote image")
	return out, nil
}

func firstInlineImage(resp *genai.GenerateContentResponse) (domain.Image, bool) {
	if resp == nil {
		return domain.Image{}, false
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return domain.Image{Data: part.InlineData.Data, MIME: mime}, true
		}
	}
	return domain.Image{}, false
}

func (c *Client) syntheticImage(src domain.Image, instruction string) (domain.Image, error) {
	seed := deterministicSeed(c.model, instruction, sha256.Sum256(src.Data))
	data, w, h := renderSyntheticImage(src.Data, seed)
	if len(data) == 0 {
		return domain.Image{}, errors.New("genai: render synthetic image")
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("seed", seed).
		Msg("genai: generated synthetic image")

	return domain.Image{Data: data, MIME: "image/png", Width: w, Height: h}, nil
}

// renderSyntheticImage tints the decoded source with a seed color and overlays
// diagonal stripes. Sources that cannot be decoded get a plain pattern.
func renderSyntheticImage(source []byte, seed string) ([]byte, int, int) {
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)

	var img *image.RGBA
	if decoded, _, err := image.Decode(bytes.NewReader(source)); err == nil {
		img = image.NewRGBA(decoded.Bounds())
		draw.Draw(img, img.Bounds(), decoded, decoded.Bounds().Min, draw.Src)
	} else {
		img = image.NewRGBA(image.Rect(0, 0, 512, 512))
		draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)
	}

	tint := color.NRGBA{R: base.R, G: base.G, B: base.B, A: 96}
	draw.Draw(img, img.Bounds(), &image.Uniform{tint}, image.Point{}, draw.Over)

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	step := max(16, width/24)
	for i := 0; i < width+height; i += step {
		for y := 0; y < height; y++ {
			x := i - y
			if x < 0 || x >= width {
				continue
			}
			img.Set(bounds.Min.X+x, bounds.Min.Y+y, accent)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, 0, 0
	}
	return buf.Bytes(), width, height
}

func decodeImageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if seed == "" {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	r := mustParseHexByte(segment[0:2])
	g := mustParseHexByte(segment[2:4])
	b := mustParseHexByte(segment[4:6])
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func mustParseHexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(hasher, "%v", part)
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}
