package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/light-timer/internal/logic"
	"github.com/sweeney/light-timer/internal/status"
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt: timeout")

// Options configures a RealClient.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topics   Topics

	// Timeout bounds connect, publish and subscribe acknowledgements.
	Timeout time.Duration
	// CommandWait is how long FetchMode waits for the retained command.
	CommandWait time.Duration
}

// RealClient talks to an actual MQTT broker. It publishes telemetry and
// serves as a remote command source backed by a retained topic.
type RealClient struct {
	client paho.Client
	opts   Options
	log    *zap.Logger
}

// NewRealClient connects to the broker. The system topic carries a retained
// OFFLINE last-will so dashboards notice an unclean exit.
func NewRealClient(opts Options, log *zap.Logger) (*RealClient, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.CommandWait <= 0 {
		opts.CommandWait = 2 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})

	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(opts.Topics.System, will, 1, true).
		SetOnConnectHandler(func(paho.Client) {
			log.Info("mqtt connected", zap.String("broker", opts.Broker))
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn("mqtt connection lost", zap.Error(err))
		})
	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}

	client := paho.NewClient(po)
	token := client.Connect()
	if !token.WaitTimeout(opts.Timeout) {
		return nil, fmt.Errorf("connect to broker: %w", ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &RealClient{client: client, opts: opts, log: log}, nil
}

// wait blocks until token completes, the timeout passes or ctx is done.
func (c *RealClient) wait(ctx context.Context, token paho.Token) error {
	timer := time.NewTimer(c.opts.Timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishStatus sends the report as a retained QoS 1 message.
func (c *RealClient) PublishStatus(ctx context.Context, r status.Report) error {
	payload, err := FormatStatusPayload(r)
	if err != nil {
		return fmt.Errorf("format status payload: %w", err)
	}

	token := c.client.Publish(c.opts.Topics.Status, 1, true, payload)
	if err := c.wait(ctx, token); err != nil {
		return fmt.Errorf("publish status: %w", err)
	}
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	token := c.client.Publish(c.opts.Topics.System, 1, event.Retained, payload)
	if err := c.wait(context.Background(), token); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// FetchMode reads the retained command. It subscribes, waits up to
// CommandWait for the broker to deliver the retained message, and
// unsubscribes. No message within the wait means no command is set.
func (c *RealClient) FetchMode(ctx context.Context) (string, bool, error) {
	topic := c.opts.Topics.Command
	msgs := make(chan []byte, 1)

	token := c.client.Subscribe(topic, 1, func(_ paho.Client, m paho.Message) {
		select {
		case msgs <- m.Payload():
		default:
		}
	})
	if err := c.wait(ctx, token); err != nil {
		return "", false, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	defer func() {
		if !c.client.Unsubscribe(topic).WaitTimeout(c.opts.Timeout) {
			c.log.Warn("mqtt unsubscribe timed out", zap.String("topic", topic))
		}
	}()

	timer := time.NewTimer(c.opts.CommandWait)
	defer timer.Stop()

	select {
	case p := <-msgs:
		mode, found := ParseCommand(p)
		return mode, found, nil
	case <-timer.C:
		return "", false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// ResetMode replaces the retained command with auto.
func (c *RealClient) ResetMode(ctx context.Context) error {
	payload, err := FormatCommand(string(logic.ModeAuto), time.Now(), UpdatedByAutoRevert)
	if err != nil {
		return fmt.Errorf("format command: %w", err)
	}

	token := c.client.Publish(c.opts.Topics.Command, 1, true, payload)
	if err := c.wait(ctx, token); err != nil {
		return fmt.Errorf("reset command: %w", err)
	}
	return nil
}

// IsConnected reports whether the client is connected to the broker.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnected()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
