package genai

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"google.golang.org/genai"

	"portraitstudio/internal/domain"
)

type fakeModels struct {
	model    string
	contents []*genai.Content
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	return f.resp, f.err
}

func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestTransformReturnsInlineImage(t *testing.T) {
	out := samplePNG(t, 8, 6)
	fake := &fakeModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				genai.NewPartFromText("here you go"),
				genai.NewPartFromBytes(out, "image/png"),
			}},
		}},
	}}
	client, err := NewClient(context.Background(), Options{Models: fake})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	src := domain.Image{Data: samplePNG(t, 2, 2), MIME: "image/png"}
	img, err := client.Transform(context.Background(), src, "make it neon")
	if err != nil {
		t.Fatalf("Transform error: %v", err)
	}
	if !bytes.Equal(img.Data, out) || img.MIME != "image/png" {
		t.Fatalf("unexpected image: %d bytes, %q", len(img.Data), img.MIME)
	}
	if img.Width != 8 || img.Height != 6 {
		t.Fatalf("dimensions = %dx%d", img.Width, img.Height)
	}
	if fake.model != defaultModel {
		t.Fatalf("model = %q", fake.model)
	}
	parts := fake.contents[0].Parts
	if len(parts) != 2 || parts[0].InlineData == nil || parts[1].Text != "make it neon" {
		t.Fatalf("unexpected request parts: %#v", parts)
	}
}

func TestTransformWithoutImagePart(t *testing.T) {
	fake := &fakeModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{genai.NewPartFromText("sorry")}}}},
	}}
	client, _ := NewClient(context.Background(), Options{Models: fake})
	_, err := client.Transform(context.Background(), domain.Image{Data: []byte{1}}, "x")
	if err == nil || err.Error() != "no image data received from AI model" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTransformPropagatesRemoteError(t *testing.T) {
	fake := &fakeModels{err: errors.New("service unavailable")}
	client, _ := NewClient(context.Background(), Options{Models: fake})
	_, err := client.Transform(context.Background(), domain.Image{Data: []byte{1}}, "x")
	if err == nil || err.Error() != "service unavailable" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSyntheticTransformIsDeterministic(t *testing.T) {
	client, err := NewClient(context.Background(), Options{})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if !client.Synthetic() {
		t.Fatalf("expected synthetic mode without an API key")
	}
	src := domain.Image{Data: samplePNG(t, 40, 30), MIME: "image/png"}

	first, err := client.Transform(context.Background(), src, "watercolor")
	if err != nil {
		t.Fatalf("Transform error: %v", err)
	}
	second, _ := client.Transform(context.Background(), src, "watercolor")
	if !bytes.Equal(first.Data, second.Data) {
		t.Fatalf("synthetic output not deterministic")
	}
	if first.Width != 40 || first.Height != 30 || first.MIME != "image/png" {
		t.Fatalf("unexpected synthetic image %dx%d %q", first.Width, first.Height, first.MIME)
	}
	other, _ := client.Transform(context.Background(), src, "cyberpunk")
	if bytes.Equal(first.Data, other.Data) {
		t.Fatalf("different instructions produced identical output")
	}
}

func TestTransformHonoursCancelledContext(t *testing.T) {
	client, _ := NewClient(context.Background(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Transform(ctx, domain.Image{Data: []byte{1}}, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
