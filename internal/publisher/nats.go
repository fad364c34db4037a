package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"shuttle-tracker/internal/live"
	"shuttle-tracker/internal/logger"
)

type NATSPublisher struct {
	nc           *nats.Conn
	boardSubject string
	log          logger.Logger
	metrics      PublisherMetrics
	sub          *nats.Subscription
}

type PublisherMetrics interface {
	BoardPublishedInc()
	BoardPublishErrInc()
	PublishObserve(d time.Duration)
	VehicleReceivedInc()
	VehicleDecodeErrInc()
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, boardSubject string, log logger.Logger, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("shuttle-tracker"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, boardSubject: boardSubject, log: log, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.sub != nil {
		_ = p.sub.Unsubscribe()
	}
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// PositionMessage is a vehicle position as published by the feed collaborator.
type PositionMessage struct {
	TripID    string    `json:"tripId"`
	VehicleID string    `json:"vehicleId"`
	RouteID   string    `json:"routeId"`
	RouteName string    `json:"routeName"`
	Timestamp time.Time `json:"timestamp"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
}

var errNoPosition = errors.New("position without coordinates")

// DecodePosition turns a wire message into a live.Vehicle. Messages without a
// vehicle ID fall back to the trip ID.
func DecodePosition(data []byte, received time.Time) (live.Vehicle, error) {
	var pm PositionMessage
	if err := json.Unmarshal(data, &pm); err != nil {
		return live.Vehicle{}, fmt.Errorf("decode position: %w", err)
	}
	if pm.Lat == 0 || pm.Lon == 0 {
		return live.Vehicle{}, errNoPosition
	}
	id := firstNonEmpty(pm.VehicleID, pm.TripID)
	if id == "" {
		return live.Vehicle{}, errors.New("position without vehicle or trip id")
	}
	seen := pm.Timestamp
	if seen.IsZero() {
		seen = received
	}
	return live.Vehicle{
		VehicleID: id,
		RouteID:   pm.RouteID,
		RouteName: pm.RouteName,
		Lat:       pm.Lat,
		Lon:       pm.Lon,
		SeenAt:    seen,
	}, nil
}

// SubscribeVehicles feeds decoded vehicle positions on subject into buf.
func (p *NATSPublisher) SubscribeVehicles(subject string, buf *live.Buffer) error {
	sub, err := p.nc.Subscribe(subject, func(msg *nats.Msg) {
		v, err := DecodePosition(msg.Data, time.Now())
		if err != nil {
			if p.metrics != nil {
				p.metrics.VehicleDecodeErrInc()
			}
			p.log.Debug("dropping vehicle position", "subject", msg.Subject, "error", err)
			return
		}
		if p.metrics != nil {
			p.metrics.VehicleReceivedInc()
		}
		buf.Put(v)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	p.sub = sub
	p.log.Info("subscribed to vehicle positions", "subject", subject)
	return nil
}

// PublishBoard publishes v as JSON on the board subject, or on
// boardSubject.<suffix> when suffix is set.
func (p *NATSPublisher) PublishBoard(suffix string, v interface{}) error {
	subject := p.boardSubject
	if suffix != "" {
		subject = fmt.Sprintf("%s.%s", p.boardSubject, subjectToken(suffix))
	}
	start := time.Now()
	b, err := json.Marshal(v)
	if err == nil {
		err = p.nc.Publish(subject, b)
	}
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.BoardPublishErrInc()
		} else {
			p.metrics.BoardPublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
