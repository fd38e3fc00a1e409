package studio

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"portraitstudio/internal/domain"
)

type stubGateway struct {
	mu        sync.Mutex
	opened    []domain.Charge
	openErr   error
	verifyErr error
	orderID   string
}

func (g *stubGateway) Open(_ context.Context, charge domain.Charge) (domain.Checkout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.opened = append(g.opened, charge)
	if g.openErr != nil {
		return domain.Checkout{}, g.openErr
	}
	id := g.orderID
	if id == "" {
		id = "order_1"
	}
	return domain.Checkout{OrderID: id, Amount: charge.Amount, Currency: charge.Currency, Description: charge.Description}, nil
}

func (g *stubGateway) Verify(_ context.Context, _ domain.PaymentOutcome) error {
	return g.verifyErr
}

func (g *stubGateway) openCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.opened)
}

type stubGenerator struct {
	mu           sync.Mutex
	calls        int
	instructions []string
	err          error
	block        bool
	out          domain.Image
	onCall       func()
}

func (g *stubGenerator) Transform(ctx context.Context, src domain.Image, instruction string) (domain.Image, error) {
	g.mu.Lock()
	g.calls++
	g.instructions = append(g.instructions, instruction)
	onCall := g.onCall
	g.mu.Unlock()
	if onCall != nil {
		onCall()
	}
	if g.block {
		<-ctx.Done()
		return domain.Image{}, ctx.Err()
	}
	if g.err != nil {
		return domain.Image{}, g.err
	}
	if len(g.out.Data) > 0 {
		return g.out, nil
	}
	return domain.Image{Data: []byte("styled"), MIME: "image/png", Width: 1, Height: 1}, nil
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type stubRefunder struct {
	mu    sync.Mutex
	calls []domain.RefundRequest
	err   error
	block bool
}

func (r *stubRefunder) Refund(ctx context.Context, req domain.RefundRequest) error {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	r.mu.Unlock()
	if r.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return r.err
}

func (r *stubRefunder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type fixture struct {
	svc       *Service
	gateway   *stubGateway
	generator *stubGenerator
	refunder  *stubRefunder
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		gateway:   &stubGateway{},
		generator: &stubGenerator{},
		refunder:  &stubRefunder{},
	}
	opts := Options{
		Store:             NewMemoryStore(time.Hour),
		Gateway:           f.gateway,
		Generator:         f.generator,
		Refunder:          f.refunder,
		GenerationTimeout: time.Second,
		RefundTimeout:     time.Second,
	}
	if mutate != nil {
		mutate(&opts)
	}
	svc, err := NewService(opts)
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	f.svc = svc
	return f
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// paddedPNG returns a valid PNG followed by filler so that its size is n bytes.
func paddedPNG(t *testing.T, n int) []byte {
	t.Helper()
	data := pngBytes(t, 4, 4)
	if len(data) > n {
		t.Fatalf("png larger than requested size")
	}
	return append(data, make([]byte, n-len(data))...)
}

func mustNotErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func mustErrIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
