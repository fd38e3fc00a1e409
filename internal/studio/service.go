package studio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"portraitstudio/internal/catalog"
	"portraitstudio/internal/domain"
	"portraitstudio/internal/telemetry"
)

// PaymentGateway opens checkouts and verifies the outcomes reported for them.
type PaymentGateway interface {
	Open(ctx context.Context, charge domain.Charge) (domain.Checkout, error)
	Verify(ctx context.Context, outcome domain.PaymentOutcome) error
}

// Generator renders a stylized copy of an image.
type Generator interface {
	Transform(ctx context.Context, src domain.Image, instruction string) (domain.Image, error)
}

// Refunder reverses a captured payment.
type Refunder interface {
	Refund(ctx context.Context, req domain.RefundRequest) error
}

const (
	defaultCheckoutTimeout   = 15 * time.Second
	defaultGenerationTimeout = 90 * time.Second
	defaultRefundTimeout     = 20 * time.Second
	defaultCheckoutExpiry    = 10 * time.Minute
)

// Options configures a Service. Store, Gateway, Generator and Refunder are required.
type Options struct {
	Store     Store
	Catalog   *catalog.Catalog
	Gateway   PaymentGateway
	Generator Generator
	Refunder  Refunder
	Logger    *zerolog.Logger
	Metrics   *telemetry.Metrics

	CheckoutTimeout   time.Duration
	GenerationTimeout time.Duration
	RefundTimeout     time.Duration

	// CheckoutExpiry is how long an opened checkout blocks a new one. After it
	// a new checkout replaces the pending order.
	CheckoutExpiry time.Duration

	// AutoRefund runs the refund stage as soon as a paid generation fails.
	AutoRefund bool

	NewID func() string
	Now   func() time.Time
}

// Service drives sessions through the acquisition, payment, generation and
// refund stages. Mutations of one session are serialized; capability calls
// for generation and refund run outside the session lock, guarded by the
// session's in-flight flags.
type Service struct {
	store     Store
	catalog   *catalog.Catalog
	gateway   PaymentGateway
	generator Generator
	refunder  Refunder
	logger    zerolog.Logger
	metrics   *telemetry.Metrics

	checkoutTimeout   time.Duration
	generationTimeout time.Duration
	refundTimeout     time.Duration
	checkoutExpiry    time.Duration
	autoRefund        bool
	newID             func() string
	now               func() time.Time

	locks    [lockStripes]sync.Mutex
	watchers *watchers
}

// NewService validates the options and builds a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("studio: store is required")
	}
	if opts.Gateway == nil || opts.Generator == nil || opts.Refunder == nil {
		return nil, errors.New("studio: payment, generation and refund capabilities are required")
	}
	svc := &Service{
		store:             opts.Store,
		catalog:           opts.Catalog,
		gateway:           opts.Gateway,
		generator:         opts.Generator,
		refunder:          opts.Refunder,
		metrics:           opts.Metrics,
		checkoutTimeout:   opts.CheckoutTimeout,
		generationTimeout: opts.GenerationTimeout,
		refundTimeout:     opts.RefundTimeout,
		checkoutExpiry:    opts.CheckoutExpiry,
		autoRefund:        opts.AutoRefund,
		newID:             opts.NewID,
		now:               opts.Now,
		watchers:          newWatchers(),
	}
	if svc.catalog == nil {
		svc.catalog = catalog.Default()
	}
	if opts.Logger != nil {
		svc.logger = *opts.Logger
	} else {
		svc.logger = zerolog.New(io.Discard)
	}
	if svc.checkoutTimeout <= 0 {
		svc.checkoutTimeout = defaultCheckoutTimeout
	}
	if svc.generationTimeout <= 0 {
		svc.generationTimeout = defaultGenerationTimeout
	}
	if svc.refundTimeout <= 0 {
		svc.refundTimeout = defaultRefundTimeout
	}
	if svc.checkoutExpiry <= 0 {
		svc.checkoutExpiry = defaultCheckoutExpiry
	}
	if svc.newID == nil {
		svc.newID = uuid.NewString
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// Catalog returns the static catalog the service prices and renders from.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Create starts a fresh session.
func (s *Service) Create(ctx context.Context) (Session, error) {
	sess := NewSession(s.newID())
	if err := s.store.Save(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("studio: save session: %w", err)
	}
	s.logger.Debug().Str("session_id", sess.ID).Msg("studio: session created")
	return sess, nil
}

// Get returns the current snapshot of a session.
func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	return s.store.Load(ctx, id)
}

// Discard drops a session entirely.
func (s *Service) Discard(ctx context.Context, id string) error {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("studio: delete session: %w", err)
	}
	return nil
}

// Watch subscribes to the snapshots of a session. The channel is closed when
// the returned cancel function is called.
func (s *Service) Watch(ctx context.Context, id string) (<-chan Session, func(), error) {
	sess, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	sub, cancel := s.watchers.subscribe(sess)
	return sub.ch, cancel, nil
}

// UploadImage runs the acquisition stage for a photo.
func (s *Service) UploadImage(ctx context.Context, id string, upload domain.Upload) (Session, error) {
	return s.update(ctx, id, func(cur Session) (Session, error) {
		if cur.Processing || cur.CheckoutPending() {
			return cur, ErrBusy
		}
		img, err := DecodeUpload(upload)
		switch {
		case errors.Is(err, ErrFileTooLarge):
			s.metrics.RecordStage(ctx, telemetry.StageUpload, telemetry.OutcomeRejected, 0)
			return Reduce(cur, ImageRejected{Message: fileTooLargeMessage(max(upload.Size, int64(len(upload.Data))))}), err
		case err != nil:
			s.metrics.RecordStage(ctx, telemetry.StageUpload, telemetry.OutcomeRejected, 0)
			return Reduce(cur, ImageRejected{Message: msgUnsupportedImage}), err
		}
		s.metrics.RecordStage(ctx, telemetry.StageUpload, telemetry.OutcomeOK, 0)
		return Reduce(cur, ImageAccepted{Image: img}), nil
	})
}

// ClearImage removes the uploaded photo.
func (s *Service) ClearImage(ctx context.Context, id string) (Session, error) {
	return s.update(ctx, id, func(cur Session) (Session, error) {
		if cur.Processing || cur.CheckoutPending() {
			return cur, ErrBusy
		}
		return Reduce(cur, ImageCleared{}), nil
	})
}

// SelectStyle picks one of the catalog styles.
func (s *Service) SelectStyle(ctx context.Context, id string, style catalog.StyleID) (Session, error) {
	return s.update(ctx, id, func(cur Session) (Session, error) {
		if cur.Processing || cur.CheckoutPending() {
			return cur, ErrBusy
		}
		if _, ok := s.catalog.Style(style); !ok {
			return Reduce(cur, ValidationFailed{Message: msgUnknownStyle}), fmt.Errorf("%w: %q", ErrUnknownStyle, style)
		}
		return Reduce(cur, StyleSelected{Style: style}), nil
	})
}

// InitiatePayment opens a checkout for the fixed fee. The session lock is held
// while the gateway is opened so that a second call sees the pending checkout.
func (s *Service) InitiatePayment(ctx context.Context, id string) (domain.Checkout, Session, error) {
	var checkout domain.Checkout
	sess, err := s.update(ctx, id, func(cur Session) (Session, error) {
		now := s.now()
		switch {
		case cur.Processing, cur.RefundState == RefundInFlight:
			return cur, ErrBusy
		case cur.CheckoutPending() && !cur.CheckoutStale(now, s.checkoutExpiry):
			return cur, ErrBusy
		case cur.Paid():
			return cur, ErrAlreadyPaid
		case !cur.HasSource() || cur.SelectedStyle == "":
			s.metrics.RecordStage(ctx, telemetry.StagePayment, telemetry.OutcomeRejected, 0)
			return Reduce(cur, ValidationFailed{Message: msgMissingInput}), ErrMissingInput
		}
		style, ok := s.catalog.Style(cur.SelectedStyle)
		if !ok {
			return Reduce(cur, ValidationFailed{Message: msgUnknownStyle}), ErrUnknownStyle
		}
		if cur.CheckoutPending() {
			s.logger.Info().Str("session_id", cur.ID).Str("order_id", cur.PendingOrder).
				Msg("studio: replacing expired checkout")
			s.metrics.RecordStage(ctx, telemetry.StagePayment, telemetry.OutcomeDismissed, 0)
		}
		charge := domain.Charge{
			Amount:      catalog.FeeAmount,
			Currency:    catalog.FeeCurrency,
			Description: "Transformation: " + style.Label,
			Receipt:     cur.ID,
		}

		openCtx, cancel := context.WithTimeout(ctx, s.checkoutTimeout)
		defer cancel()
		start := time.Now()
		opened, err := s.gateway.Open(openCtx, charge)
		if err != nil {
			s.logger.Warn().Err(err).Str("session_id", cur.ID).Msg("studio: checkout open failed")
			s.metrics.RecordStage(ctx, telemetry.StagePayment, telemetry.OutcomeFailed, time.Since(start))
			return Reduce(cur, CheckoutFailed{Message: err.Error()}), fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
		}
		checkout = opened
		s.logger.Info().Str("session_id", cur.ID).Str("order_id", opened.OrderID).Msg("studio: checkout opened")
		return Reduce(cur, CheckoutOpened{OrderID: opened.OrderID, At: now}), nil
	})
	if err != nil {
		return domain.Checkout{}, sess, err
	}
	return checkout, sess, nil
}

// CancelCheckout abandons the pending checkout, as if the widget had been
// dismissed. It lets the user change the photo or style, or pay again, when
// the widget's outcome never arrives.
func (s *Service) CancelCheckout(ctx context.Context, id string) (Session, error) {
	return s.update(ctx, id, func(cur Session) (Session, error) {
		if !cur.CheckoutPending() {
			return cur, ErrNoCheckout
		}
		s.logger.Info().Str("session_id", cur.ID).Str("order_id", cur.PendingOrder).Msg("studio: checkout cancelled")
		s.metrics.RecordStage(ctx, telemetry.StagePayment, telemetry.OutcomeDismissed, 0)
		return Reduce(cur, PaymentDismissed{}), nil
	})
}

// CompletePayment applies the checkout widget's outcome. A verified success
// commits the payment reference and runs the generation stage with it.
func (s *Service) CompletePayment(ctx context.Context, id string, outcome domain.PaymentOutcome) (Session, error) {
	sess, err := s.CapturePayment(ctx, id, outcome)
	if err != nil || outcome.Kind != domain.OutcomeSucceeded {
		return sess, err
	}
	return s.Generate(ctx, id, outcome.PaymentID)
}

// CapturePayment applies the checkout widget's outcome without starting
// generation. A verified success commits the payment reference; the caller is
// expected to run Generate with it.
func (s *Service) CapturePayment(ctx context.Context, id string, outcome domain.PaymentOutcome) (Session, error) {
	return s.update(ctx, id, func(cur Session) (Session, error) {
		if !cur.CheckoutPending() || outcome.OrderID != cur.PendingOrder {
			return cur, ErrNoCheckout
		}
		if !outcome.Valid() {
			s.metrics.RecordStage(ctx, telemetry.StagePayment, telemetry.OutcomeFailed, 0)
			return Reduce(cur, PaymentFailed{Message: msgPaymentFailed}), fmt.Errorf("%w: %w", ErrPaymentFailed, domain.ErrInvalidOutcome)
		}
		switch outcome.Kind {
		case domain.OutcomeDismissed:
			s.metrics.RecordStage(ctx, telemetry.StagePayment, telemetry.OutcomeDismissed, 0)
			return Reduce(cur, PaymentDismissed{}), nil
		case domain.OutcomeFailed:
			msg := outcome.Description
			if msg == "" {
				msg = msgPaymentFailed
			}
			s.metrics.RecordStage(ctx, telemetry.StagePayment, telemetry.OutcomeFailed, 0)
			return Reduce(cur, PaymentFailed{Message: msg}), ErrPaymentFailed
		}
		if err := s.gateway.Verify(ctx, outcome); err != nil {
			s.logger.Error().Err(err).
				Str("session_id", cur.ID).
				Str("payment_reference", outcome.PaymentID).
				Msg("studio: payment verification failed")
			s.metrics.RecordStage(ctx, telemetry.StagePayment, telemetry.OutcomeFailed, 0)
			return Reduce(cur, PaymentFailed{Message: msgPaymentUnverified}), fmt.Errorf("%w: %w", ErrPaymentFailed, err)
		}
		s.metrics.RecordStage(ctx, telemetry.StagePayment, telemetry.OutcomeOK, 0)
		s.logger.Info().Str("session_id", cur.ID).Str("payment_reference", outcome.PaymentID).Msg("studio: payment captured")
		return Reduce(cur, PaymentCaptured{Reference: outcome.PaymentID}), nil
	})
}

// Generate runs the generation stage for a committed payment reference.
func (s *Service) Generate(ctx context.Context, id, reference string) (Session, error) {
	var (
		src         domain.Image
		instruction string
	)
	sess, err := s.update(ctx, id, func(cur Session) (Session, error) {
		if reference == "" || reference != cur.PaymentReference {
			return cur, ErrNotPaid
		}
		if cur.Processing {
			return cur, ErrBusy
		}
		next := Reduce(cur, GenerationStarted{})
		text, ok := s.catalog.Instruction(cur.SelectedStyle)
		if !ok || cur.SourceImage == nil {
			s.logger.Error().
				Str("session_id", cur.ID).
				Str("style", string(cur.SelectedStyle)).
				Msg("studio: generation configuration fault")
			s.metrics.RecordStage(ctx, telemetry.StageGenerate, telemetry.OutcomeFailed, 0)
			return Reduce(next, GenerationFailed{Message: generationFailedMessage(msgStyleMisconfigured, reference)}),
				fmt.Errorf("%w: %s", ErrGenerationFailed, msgStyleMisconfigured)
		}
		src = *cur.SourceImage
		instruction = text
		return next, nil
	})
	if err != nil {
		if errors.Is(err, ErrGenerationFailed) {
			return s.afterGenerationFailure(ctx, id, sess)
		}
		return sess, err
	}

	genCtx, cancel := context.WithTimeout(ctx, s.generationTimeout)
	start := time.Now()
	out, genErr := s.generator.Transform(genCtx, src, instruction)
	elapsed := time.Since(start)
	timedOut := errors.Is(genCtx.Err(), context.DeadlineExceeded)
	cancel()
	if genErr == nil && len(out.Data) == 0 {
		genErr = errors.New(msgNoImageData)
	}

	// The outcome is recorded even if the caller went away, so the session
	// never stays stuck in processing.
	final := context.WithoutCancel(ctx)
	sess, err = s.update(final, id, func(cur Session) (Session, error) {
		if cur.PaymentReference != reference || !cur.Processing {
			s.logger.Warn().Str("session_id", id).Str("payment_reference", reference).
				Msg("studio: dropping generation result for a replaced session")
			return cur, nil
		}
		if genErr != nil {
			cause := genErr.Error()
			outcome := telemetry.OutcomeFailed
			if timedOut {
				cause = msgGenerationTimeout
				outcome = telemetry.OutcomeTimeout
			}
			s.logger.Error().Err(genErr).
				Str("session_id", id).
				Str("payment_reference", reference).
				Dur("elapsed", elapsed).
				Msg("studio: generation failed")
			s.metrics.RecordStage(final, telemetry.StageGenerate, outcome, elapsed)
			return Reduce(cur, GenerationFailed{Message: generationFailedMessage(cause, reference)}),
				fmt.Errorf("%w: %v", ErrGenerationFailed, genErr)
		}
		s.logger.Info().
			Str("session_id", id).
			Str("payment_reference", reference).
			Dur("elapsed", elapsed).
			Int("bytes", len(out.Data)).
			Msg("studio: generation succeeded")
		s.metrics.RecordStage(final, telemetry.StageGenerate, telemetry.OutcomeOK, elapsed)
		return Reduce(cur, GenerationSucceeded{Image: out}), nil
	})
	if errors.Is(err, ErrGenerationFailed) {
		return s.afterGenerationFailure(final, id, sess)
	}
	return sess, err
}

func (s *Service) afterGenerationFailure(ctx context.Context, id string, failed Session) (Session, error) {
	if !s.autoRefund {
		return failed, ErrGenerationFailed
	}
	s.logger.Info().Str("session_id", id).Str("payment_reference", failed.PaymentReference).
		Msg("studio: refunding failed generation automatically")
	sess, err := s.RequestRefund(ctx, id)
	if err != nil {
		return sess, errors.Join(ErrGenerationFailed, err)
	}
	return sess, ErrGenerationFailed
}

// RequestRefund makes the single best-effort refund attempt for the session's
// payment. Without a payment reference it does nothing.
func (s *Service) RequestRefund(ctx context.Context, id string) (Session, error) {
	var reference string
	sess, err := s.update(ctx, id, func(cur Session) (Session, error) {
		switch {
		case !cur.Paid():
			return cur, ErrNotPaid
		case cur.Processing, cur.RefundState == RefundInFlight:
			return cur, ErrBusy
		case cur.RefundState.Terminal():
			return cur, ErrRefundClosed
		}
		reference = cur.PaymentReference
		return Reduce(cur, RefundStarted{}), nil
	})
	if err != nil {
		return sess, err
	}

	refundCtx, cancel := context.WithTimeout(ctx, s.refundTimeout)
	start := time.Now()
	refundErr := s.refunder.Refund(refundCtx, domain.RefundRequest{
		PaymentReference: reference,
		Amount:           catalog.FeeAmount,
		Currency:         catalog.FeeCurrency,
		Reason:           "customer requested refund",
	})
	elapsed := time.Since(start)
	timedOut := errors.Is(refundCtx.Err(), context.DeadlineExceeded)
	cancel()

	final := context.WithoutCancel(ctx)
	return s.update(final, id, func(cur Session) (Session, error) {
		if cur.PaymentReference != reference || cur.RefundState != RefundInFlight {
			return cur, nil
		}
		if refundErr != nil {
			outcome := telemetry.OutcomeFailed
			if timedOut {
				outcome = telemetry.OutcomeTimeout
			}
			s.logger.Error().Err(refundErr).
				Str("session_id", id).
				Str("payment_reference", reference).
				Msg("studio: automatic refund failed")
			s.metrics.RecordStage(final, telemetry.StageRefund, outcome, elapsed)
			msg := refundFailedMessage(refundErr.Error(), reference, s.catalog.SupportEmail)
			return Reduce(cur, RefundRejected{Message: msg}), fmt.Errorf("%w: %v", ErrRefundFailed, refundErr)
		}
		s.logger.Info().Str("session_id", id).Str("payment_reference", reference).Msg("studio: refund succeeded")
		s.metrics.RecordStage(final, telemetry.StageRefund, telemetry.OutcomeOK, elapsed)
		return Reduce(cur, RefundSettled{Message: msgRefundSucceeded}), nil
	})
}

// Reset replaces the session with a fresh default one.
func (s *Service) Reset(ctx context.Context, id string) (Session, error) {
	return s.update(ctx, id, func(cur Session) (Session, error) {
		return Reduce(cur, Reset{}), nil
	})
}

// lockStripes bounds the number of session mutexes. Sessions hashing to the
// same stripe share a mutex; no operation holds two session locks at once.
const lockStripes = 256

func (s *Service) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.locks[h.Sum32()%lockStripes]
}

// update loads a session, applies fn under the session lock and persists the
// result. fn may return a changed session together with an error; the change
// is still saved.
func (s *Service) update(ctx context.Context, id string, fn func(Session) (Session, error)) (Session, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	cur, err := s.store.Load(ctx, id)
	if err != nil {
		return Session{}, err
	}
	next, fnErr := fn(cur)
	if !sameSession(cur, next) {
		if err := s.store.Save(ctx, next); err != nil {
			return cur, fmt.Errorf("studio: save session: %w", err)
		}
		s.watchers.publish(next)
	}
	return next, fnErr
}

func sameSession(a, b Session) bool {
	return a.ID == b.ID &&
		sameImage(a.SourceImage, b.SourceImage) &&
		a.SelectedStyle == b.SelectedStyle &&
		a.Processing == b.Processing &&
		sameImage(a.ResultImage, b.ResultImage) &&
		a.PaymentReference == b.PaymentReference &&
		a.PaymentAuthorized == b.PaymentAuthorized &&
		a.PendingOrder == b.PendingOrder &&
		a.PendingSince.Equal(b.PendingSince) &&
		a.RefundState == b.RefundState &&
		a.LastError == b.LastError
}

func sameImage(a, b *domain.Image) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.MIME == b.MIME && a.Width == b.Width && a.Height == b.Height && bytes.Equal(a.Data, b.Data)
}
