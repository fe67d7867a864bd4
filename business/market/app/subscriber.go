package app

import (
	"context"
	"errors"
	"time"

	exdomain "basisarb/business/exchange/domain"
	"basisarb/business/market/domain"
	"basisarb/internal/apperror"
	"basisarb/internal/logger"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SubscriberState is the observable lifecycle state of a subscriber.
type SubscriberState string

const (
	StateDisconnected SubscriberState = "disconnected"
	StateSubscribing  SubscriberState = "subscribing"
	StateStreaming    SubscriberState = "streaming"
	StateBackoff      SubscriberState = "backoff"
	StateFailed       SubscriberState = "failed"
	StateCancelled    SubscriberState = "cancelled"
)

const (
	defaultMaxReconnects = 5
	defaultQueueSize     = 8
	throughputWindow     = 10 * time.Second
)

// SubscriberConfig configures one depth subscription.
type SubscriberConfig struct {
	Venue    exdomain.Venue
	Symbol   string
	Notional decimal.Decimal
	// MaxReconnects bounds consecutive transient failures before the
	// subscriber fails terminally. Zero means the default of 5.
	MaxReconnects int
	QueueSize     int
}

// Subscriber owns one venue depth stream: it resubscribes through transient
// failures with bounded backoff, suppresses unchanged snapshots, prices
// changed ones through the estimator, and delivers quotes downstream with
// latest-value-wins backpressure.
type Subscriber struct {
	cfg    SubscriberConfig
	source BookSource
	log    logger.LoggerInterface
	out    chan domain.Quote

	// backoff is replaceable in tests; production delay is 4+2^attempt s.
	backoff func(attempt int) time.Duration
	state   SubscriberState

	ticksSeen    int64
	ticksChanged int64

	msgCounter     metric.Int64Counter
	changedCounter metric.Int64Counter
	reconnects     metric.Int64Counter
}

// NewSubscriber builds a subscriber; Run starts it.
func NewSubscriber(cfg SubscriberConfig, source BookSource, log logger.LoggerInterface) *Subscriber {
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = defaultMaxReconnects
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	meter := otel.Meter("basisarb/market/subscriber")
	msgCounter, _ := meter.Int64Counter("market_ticks_total",
		metric.WithDescription("Depth snapshots received"))
	changedCounter, _ := meter.Int64Counter("market_ticks_changed_total",
		metric.WithDescription("Depth snapshots that differed from the previous one"))
	reconnects, _ := meter.Int64Counter("market_reconnects_total",
		metric.WithDescription("Stream resubscription attempts"))

	return &Subscriber{
		cfg:    cfg,
		source: source,
		log:    log,
		out:    make(chan domain.Quote, cfg.QueueSize),
		backoff: func(attempt int) time.Duration {
			return time.Duration(4+(1<<attempt)) * time.Second
		},
		state:          StateDisconnected,
		msgCounter:     msgCounter,
		changedCounter: changedCounter,
		reconnects:     reconnects,
	}
}

// Quotes returns the downstream quote channel. It closes when Run returns.
func (s *Subscriber) Quotes() <-chan domain.Quote {
	return s.out
}

// State returns the last state Run transitioned into. Only the Run goroutine
// writes it; reads from other goroutines are informational.
func (s *Subscriber) State() SubscriberState {
	return s.state
}

// Run drives the subscription until cancellation, a fatal stream error, or
// the reconnect bound. The quote channel is closed on return.
func (s *Subscriber) Run(ctx context.Context) error {
	defer close(s.out)

	attrs := metric.WithAttributes(
		attribute.String("venue", string(s.cfg.Venue)),
		attribute.String("symbol", s.cfg.Symbol),
	)

	attempt := 0
	var prev *domain.OrderBook

	for {
		if ctx.Err() != nil {
			s.state = StateCancelled
			return apperror.Wrap(ctx.Err(), apperror.CodeSubscriptionCancelled,
				apperror.WithContextf("%s %s", s.cfg.Venue, s.cfg.Symbol))
		}

		s.state = StateSubscribing
		s.reconnects.Add(ctx, 1, attrs)

		snapshots, err := s.source.WatchOrderBook(ctx, s.cfg.Venue, s.cfg.Symbol)
		if err != nil {
			if !exdomain.IsTransient(err) {
				s.state = StateFailed
				return err
			}
			attempt++
			if next, ok := s.delay(ctx, attempt); !ok {
				s.state = next
				return s.terminal(ctx, next, err)
			}
			continue
		}

		s.state = StateStreaming
		streamErr := s.stream(ctx, snapshots, &prev, attrs)
		switch {
		case streamErr == nil:
			// Stream closed: the transport gave up. Counts as transient.
			attempt++
			if next, ok := s.delay(ctx, attempt); !ok {
				s.state = next
				return s.terminal(ctx, next, errors.New("stream closed"))
			}
		case errors.Is(streamErr, errStreamHealthy):
			// At least one tick was delivered before the drop; the retry
			// budget starts over.
			attempt = 1
			if next, ok := s.delay(ctx, attempt); !ok {
				s.state = next
				return s.terminal(ctx, next, streamErr)
			}
		default:
			if apperror.HasCode(streamErr, apperror.CodeSubscriptionCancelled) {
				s.state = StateCancelled
			} else {
				s.state = StateFailed
			}
			return streamErr
		}
	}
}

// errStreamHealthy marks a drop that happened after successful delivery.
var errStreamHealthy = errors.New("stream dropped after delivery")

// stream consumes one live subscription. Returns nil if the channel closed
// before delivering anything, errStreamHealthy if it closed after delivering
// at least one tick, or a fatal error.
func (s *Subscriber) stream(ctx context.Context, snapshots <-chan exdomain.BookSnapshot, prev **domain.OrderBook, attrs metric.MeasurementOption) error {
	window := time.NewTicker(throughputWindow)
	defer window.Stop()
	delivered := false

	for {
		select {
		case <-ctx.Done():
			s.state = StateCancelled
			return apperror.Wrap(ctx.Err(), apperror.CodeSubscriptionCancelled,
				apperror.WithContextf("%s %s", s.cfg.Venue, s.cfg.Symbol))

		case <-window.C:
			seconds := throughputWindow.Seconds()
			s.log.Debug(ctx, "subscriber throughput",
				"venue", s.cfg.Venue,
				"symbol", s.cfg.Symbol,
				"ticks_per_sec", float64(s.ticksSeen)/seconds,
				"changed_per_sec", float64(s.ticksChanged)/seconds)
			s.ticksSeen, s.ticksChanged = 0, 0

		case snap, ok := <-snapshots:
			if !ok {
				if delivered {
					return errStreamHealthy
				}
				return nil
			}
			s.ticksSeen++
			s.msgCounter.Add(ctx, 1, attrs)

			book, err := domain.FromSnapshot(snap)
			if err != nil {
				// A malformed tick is an error, not a silent skip; the
				// stream itself stays up.
				s.log.Error(ctx, "invalid order book tick",
					"venue", s.cfg.Venue, "symbol", s.cfg.Symbol, "error", err)
				continue
			}
			if book.Equal(*prev) {
				continue
			}
			*prev = book
			s.ticksChanged++
			s.changedCounter.Add(ctx, 1, attrs)

			quote, err := s.price(book)
			if err != nil {
				var insufficient *domain.InsufficientLiquidityError
				if errors.As(err, &insufficient) {
					// The pair cannot trade at this notional; tear down.
					s.state = StateFailed
					return apperror.Wrap(err, apperror.CodeInsufficientLiquidity,
						apperror.WithContextf("%s %s notional %s", s.cfg.Venue, s.cfg.Symbol, s.cfg.Notional))
				}
				s.log.Error(ctx, "pricing tick failed",
					"venue", s.cfg.Venue, "symbol", s.cfg.Symbol, "error", err)
				continue
			}

			s.deliver(quote)
			delivered = true
		}
	}
}

// price runs the estimator on both sides for the configured notional.
func (s *Subscriber) price(book *domain.OrderBook) (domain.Quote, error) {
	avgAsk, err := domain.AveragePrice(book.Asks, s.cfg.Notional, domain.SideAsk)
	if err != nil {
		return domain.Quote{}, err
	}
	avgBid, err := domain.AveragePrice(book.Bids, s.cfg.Notional, domain.SideBid)
	if err != nil {
		return domain.Quote{}, err
	}
	return domain.Quote{
		Venue:      book.Venue,
		Symbol:     book.Symbol,
		AvgBid:     avgBid,
		AvgAsk:     avgAsk,
		ReceivedAt: book.ReceivedAt,
	}, nil
}

// deliver pushes a quote with latest-value-wins backpressure: a full queue
// drops its oldest unread quote.
func (s *Subscriber) deliver(q domain.Quote) {
	for {
		select {
		case s.out <- q:
			return
		default:
			select {
			case <-s.out:
			default:
			}
		}
	}
}

// delay sleeps the backoff for the given attempt. Returns the terminal state
// and false when the budget is spent or the context is cancelled.
func (s *Subscriber) delay(ctx context.Context, attempt int) (SubscriberState, bool) {
	if attempt > s.cfg.MaxReconnects {
		return StateFailed, false
	}
	s.state = StateBackoff
	wait := s.backoff(attempt)
	s.log.Warn(ctx, "stream lost, backing off",
		"venue", s.cfg.Venue, "symbol", s.cfg.Symbol,
		"attempt", attempt, "max", s.cfg.MaxReconnects, "delay", wait)

	select {
	case <-ctx.Done():
		return StateCancelled, false
	case <-time.After(wait):
		return StateSubscribing, true
	}
}

func (s *Subscriber) terminal(ctx context.Context, state SubscriberState, cause error) error {
	if state == StateCancelled {
		return apperror.Wrap(ctx.Err(), apperror.CodeSubscriptionCancelled,
			apperror.WithContextf("%s %s", s.cfg.Venue, s.cfg.Symbol))
	}
	return apperror.Wrap(cause, apperror.CodeReconnectLimitExceeded,
		apperror.WithContextf("%s %s after %d attempts", s.cfg.Venue, s.cfg.Symbol, s.cfg.MaxReconnects))
}
