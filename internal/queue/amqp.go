package queue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"weenotify/internal/logx"
)

const (
	DefaultPort        = 5672
	DefaultBindingKey  = "weenotify"
	DefaultConsumerTag = "weenotify"
	DefaultTimeout     = 30 * time.Second

	queuePrefix = "weenotify-"
	heartbeat   = 10 * time.Second
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateChannelOpen
	StateQueueDeclared
	StateExchangeDeclared
	StateBound
	StateConsuming
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateChannelOpen:
		return "channel_open"
	case StateQueueDeclared:
		return "queue_declared"
	case StateExchangeDeclared:
		return "exchange_declared"
	case StateBound:
		return "bound"
	case StateConsuming:
		return "consuming"
	case StateFailed:
		return "failed"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

const (
	OpConnect         = "connect"
	OpChannel         = "open channel"
	OpDeclareQueue    = "declare queue"
	OpDeclareExchange = "declare exchange"
	OpBind            = "bind queue"
	OpConsume         = "consume"
)

// SetupError is returned when one step of the session setup chain fails.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("amqp %s: %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Channel is the subset of *amqp.Channel the session uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Ack(tag uint64, multiple bool) error
	Close() error
}

type Connection interface {
	Channel() (Channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

type DialFunc func(url string, cfg amqp.Config) (Connection, error)

type amqpConnection struct {
	conn *amqp.Connection
}

func dialAMQP(url string, cfg amqp.Config) (Connection, error) {
	conn, err := amqp.DialConfig(url, cfg)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn: conn}, nil
}

func (c amqpConnection) Channel() (Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (c amqpConnection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	return c.conn.NotifyClose(receiver)
}

func (c amqpConnection) Close() error { return c.conn.Close() }

type SessionConfig struct {
	// Host is host or host:port.
	Host            string
	User            string
	Pass            string
	Vhost           string
	Exchange        string
	ExchangeDurable bool
	QueueName       string
	BindingKey      string
	ConsumerTag     string
	Timeout         time.Duration
}

// QueueName returns a fresh per-process queue name.
func QueueName() string {
	return queuePrefix + uuid.NewString()
}

type Option func(*Session)

func WithDialer(dial DialFunc) Option {
	return func(s *Session) { s.dial = dial }
}

// Session owns one broker connection and channel, bound to a fanout
// exchange through an exclusive auto-deleting queue. Setup failures are
// final: a failed session is not retried.
type Session struct {
	cfg  SessionConfig
	dial DialFunc
	log  logx.Logger

	mu     sync.Mutex
	state  State
	conn   Connection
	ch     Channel
	closed chan *amqp.Error
}

func NewSession(cfg SessionConfig, log logx.Logger, opts ...Option) *Session {
	if cfg.QueueName == "" {
		cfg.QueueName = QueueName()
	}
	if cfg.BindingKey == "" {
		cfg.BindingKey = DefaultBindingKey
	}
	if cfg.ConsumerTag == "" {
		cfg.ConsumerTag = DefaultConsumerTag
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	s := &Session{
		cfg:  cfg,
		dial: dialAMQP,
		log:  log.With(logx.String("queue", cfg.QueueName), logx.String("exchange", cfg.Exchange)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) QueueName() string { return s.cfg.QueueName }

func (s *Session) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()

	s.log.Debug("session state", logx.String("from", prev.String()), logx.String("to", st.String()))
}

func (s *Session) fail(op string, err error) error {
	s.setState(StateFailed)
	return &SetupError{Op: op, Err: err}
}

// Connect dials the broker and opens a channel.
func (s *Session) Connect() error {
	s.setState(StateConnecting)

	url, err := s.url()
	if err != nil {
		return s.fail(OpConnect, err)
	}

	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(s.cfg.ConsumerTag)

	s.log.Debug("attempting to connect", logx.String("host", s.cfg.Host), logx.String("user", s.cfg.User))
	conn, err := s.dial(url, amqp.Config{
		Vhost:      s.cfg.Vhost,
		Heartbeat:  heartbeat,
		Locale:     "en_US",
		Properties: props,
		Dial:       amqp.DefaultDial(s.cfg.Timeout),
	})
	if err != nil {
		return s.fail(OpConnect, err)
	}
	s.conn = conn
	s.closed = conn.NotifyClose(make(chan *amqp.Error, 1))

	ch, err := conn.Channel()
	if err != nil {
		return s.fail(OpChannel, err)
	}
	s.ch = ch
	s.setState(StateChannelOpen)
	return nil
}

// PrepareQueue declares the exclusive, non-durable, auto-deleting queue.
func (s *Session) PrepareQueue() error {
	if _, err := s.ch.QueueDeclare(s.cfg.QueueName, false, true, true, false, nil); err != nil {
		return s.fail(OpDeclareQueue, err)
	}
	s.setState(StateQueueDeclared)
	return nil
}

// PrepareExchange declares the fanout exchange, or asserts it exists with
// matching settings.
func (s *Session) PrepareExchange() error {
	if err := s.ch.ExchangeDeclare(s.cfg.Exchange, amqp.ExchangeFanout, s.cfg.ExchangeDurable, false, false, false, nil); err != nil {
		return s.fail(OpDeclareExchange, err)
	}
	s.setState(StateExchangeDeclared)
	return nil
}

// Bind binds the queue to the exchange. Fanout ignores the key but the
// protocol still requires one.
func (s *Session) Bind() error {
	if err := s.ch.QueueBind(s.cfg.QueueName, s.cfg.BindingKey, s.cfg.Exchange, false, nil); err != nil {
		return s.fail(OpBind, err)
	}
	s.setState(StateBound)
	return nil
}

// Open runs the setup chain up to Bound.
func (s *Session) Open() error {
	steps := []func() error{s.Connect, s.PrepareQueue, s.PrepareExchange, s.Bind}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) deliveries() (<-chan amqp.Delivery, error) {
	stream, err := s.ch.Consume(s.cfg.QueueName, s.cfg.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, s.fail(OpConsume, err)
	}
	s.setState(StateConsuming)
	return stream, nil
}

// Consume opens the session and feeds every delivery to handler, one at a
// time, until ctx is done, the stream closes or handler fails.
func (s *Session) Consume(ctx context.Context, handler Handler) error {
	if err := s.Open(); err != nil {
		return err
	}
	stream, err := s.deliveries()
	if err != nil {
		return err
	}

	s.log.Info("established stream")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-stream:
			if !ok {
				s.setState(StateFailed)
				return s.streamClosed()
			}
			if err := handler(ctx, NewDelivery(d.Body, d.DeliveryTag, s.ack)); err != nil {
				s.setState(StateFailed)
				return err
			}
		}
	}
}

func (s *Session) ack(tag uint64) error {
	return s.ch.Ack(tag, false)
}

func (s *Session) streamClosed() error {
	select {
	case reason, ok := <-s.closed:
		if ok && reason != nil {
			return fmt.Errorf("%w: %v", ErrStreamClosed, reason)
		}
	default:
	}
	return ErrStreamClosed
}

// Close releases the channel and connection. The broker deletes the queue.
func (s *Session) Close() error {
	var errs []error
	if s.ch != nil {
		if err := s.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		s.ch = nil
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		s.conn = nil
	}
	s.setState(StateDisconnected)
	return errors.Join(errs...)
}

func (s *Session) url() (string, error) {
	host, port, err := splitHostPort(s.cfg.Host)
	if err != nil {
		return "", err
	}
	uri := amqp.URI{
		Scheme:   "amqp",
		Host:     host,
		Port:     port,
		Username: s.cfg.User,
		Password: s.cfg.Pass,
		Vhost:    s.cfg.Vhost,
	}
	return uri.String(), nil
}

func splitHostPort(hostport string) (string, int, error) {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return "", 0, errors.New("empty host")
	}

	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		// No port given.
		return strings.Trim(hostport, "[]"), DefaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}
