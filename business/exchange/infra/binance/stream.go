package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"basisarb/business/exchange/domain"
	"basisarb/internal/apperror"
	"basisarb/internal/wsconn"
)

// WatchOrderBook implements Gateway. Each watch owns one combined-streams
// connection carrying a single partial-depth stream. The transport retries a
// dropped socket once; if that fails the channel closes and the caller
// decides whether to resubscribe.
func (a *Adapter) WatchOrderBook(ctx context.Context, venue domain.Venue, symbol string) (<-chan domain.BookSnapshot, error) {
	streamURL, err := a.depthStreamURL(venue, symbol)
	if err != nil {
		return nil, err
	}

	cfg := wsconn.DefaultConfig(streamURL, fmt.Sprintf("%s-%s-depth", venue, strings.ToLower(symbol)))
	cfg.MaxReconnects = 1
	if a.cfg.ReadTimeout > 0 {
		cfg.ReadTimeout = a.cfg.ReadTimeout
	}
	client, err := wsconn.New(cfg)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeGatewayConnectionFailed,
			apperror.WithContextf("depth stream %s %s", venue, symbol))
	}

	out := make(chan domain.BookSnapshot, 16)
	var closeOnce sync.Once
	finish := func() {
		closeOnce.Do(func() {
			_ = client.Close()
			close(out)
		})
	}

	client.OnMessage(func(data []byte) {
		snap, ok := a.parseDepthMessage(venue, symbol, data)
		if !ok {
			return
		}
		select {
		case out <- snap:
		default:
			// Consumer is behind; drop the oldest snapshot so the freshest
			// book always gets through.
			select {
			case <-out:
			default:
			}
			select {
			case out <- snap:
			default:
			}
		}
	})
	client.OnDisconnect(func(err error) {
		a.log.Warn(ctx, "depth stream lost", "venue", venue, "symbol", symbol, "error", err)
		finish()
	})

	if err := client.Connect(ctx); err != nil {
		finish()
		return nil, apperror.Wrap(err, apperror.CodeGatewayConnectionFailed,
			apperror.WithContextf("depth stream %s %s", venue, symbol))
	}

	go func() {
		<-ctx.Done()
		finish()
	}()

	return out, nil
}

func (a *Adapter) depthStreamURL(venue domain.Venue, symbol string) (string, error) {
	var base string
	switch venue {
	case domain.VenueSpot:
		base = a.cfg.SpotWSURL
	case domain.VenueSwap:
		base = a.cfg.FuturesWSURL
	default:
		return "", apperror.New(apperror.CodeGatewayConnectionFailed,
			apperror.WithContextf("unknown venue %q", venue))
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", apperror.Wrap(err, apperror.CodeGatewayConnectionFailed,
			apperror.WithContextf("bad stream base url %q", base))
	}
	u.Path = "/stream"
	u.RawQuery = "streams=" + fmt.Sprintf("%s@depth%d@100ms", strings.ToLower(symbol), a.cfg.SnapshotDepth)
	return u.String(), nil
}

func (a *Adapter) parseDepthMessage(venue domain.Venue, symbol string, data []byte) (domain.BookSnapshot, bool) {
	var event combinedEvent
	if err := json.Unmarshal(data, &event); err != nil || len(event.Data) == 0 {
		// Subscription acks and pings have no stream wrapper.
		return domain.BookSnapshot{}, false
	}

	snap := domain.BookSnapshot{
		Venue:      venue,
		Symbol:     symbol,
		ReceivedAt: time.Now(),
	}

	if venue == domain.VenueSpot {
		var depth spotDepthEvent
		if err := json.Unmarshal(event.Data, &depth); err != nil {
			return domain.BookSnapshot{}, false
		}
		snap.UpdateID = depth.LastUpdateID
		snap.Bids = parseLevels(depth.Bids)
		snap.Asks = parseLevels(depth.Asks)
	} else {
		var depth futuresDepthEvent
		if err := json.Unmarshal(event.Data, &depth); err != nil {
			return domain.BookSnapshot{}, false
		}
		snap.UpdateID = depth.FinalUpdateID
		snap.Bids = parseLevels(depth.Bids)
		snap.Asks = parseLevels(depth.Asks)
	}

	if len(snap.Bids) == 0 && len(snap.Asks) == 0 {
		return domain.BookSnapshot{}, false
	}
	return snap, true
}
