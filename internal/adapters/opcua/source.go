package opcua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/navarlu/Historian/internal/ports"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
)

// ErrNonNumeric is returned when a node's value cannot be coerced to float64.
var ErrNonNumeric = errors.New("opcua: non-numeric value")

// Config captures the runtime details required to open an OPC UA session.
type Config struct {
	Endpoint        string        `yaml:"endpoint"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	SecurityMode    string        `yaml:"security_mode"`
	SecurityPolicy  string        `yaml:"security_policy"`
	ApplicationName string        `yaml:"application_name"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "Historian Collector"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	return nil
}

// Source reads node values on demand over a single shared session. The mutex
// keeps the raw and loop samplers from interleaving requests on the one
// connection handle; it does not serialize anything beyond that.
type Source struct {
	cfg    Config
	mu     sync.Mutex
	client *opcua.Client
}

func NewSource(cfg Config) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Source{cfg: cfg}, nil
}

// Read resolves one node id and returns its current value as a float64.
// Booleans coerce to 0/1; any other non-numeric variant fails with
// ErrNonNumeric. The session is opened lazily on first use and dropped on
// transport errors so the next read reconnects.
func (s *Source) Read(ctx context.Context, nodeID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := ua.ParseNodeID(nodeID)
	if err != nil {
		return 0, fmt.Errorf("parse node id %q: %w", nodeID, err)
	}

	client, err := s.ensureClientLocked(ctx)
	if err != nil {
		return 0, err
	}

	readCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	req := &ua.ReadRequest{
		NodesToRead: []*ua.ReadValueID{
			{NodeID: id, AttributeID: ua.AttributeIDValue},
		},
		TimestampsToReturn: ua.TimestampsToReturnBoth,
	}
	resp, err := client.Read(readCtx, req)
	if err != nil {
		s.dropClientLocked(ctx)
		return 0, fmt.Errorf("opcua read %q: %w", nodeID, err)
	}
	if len(resp.Results) == 0 {
		return 0, fmt.Errorf("opcua read %q: empty result", nodeID)
	}
	result := resp.Results[0]
	if result.Status != ua.StatusOK {
		return 0, fmt.Errorf("opcua read %q: %s", nodeID, result.Status)
	}

	fv, ok := variantToFloat(result.Value)
	if !ok {
		return 0, fmt.Errorf("node %q: %w", nodeID, ErrNonNumeric)
	}
	return fv, nil
}

func (s *Source) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close(ctx)
	s.client = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Source) ensureClientLocked(ctx context.Context) (*opcua.Client, error) {
	if s.client != nil {
		return s.client, nil
	}

	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(s.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(s.cfg.SecurityPolicy)),
		opcua.ApplicationName(s.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}
	if s.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(s.cfg.Username, s.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}

	client, err := opcua.NewClient(s.cfg.Endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("opcua connect: %w", err)
	}
	s.client = client
	return client, nil
}

func (s *Source) dropClientLocked(ctx context.Context) {
	if s.client == nil {
		return
	}
	_ = s.client.Close(ctx)
	s.client = nil
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.ScalarSource = (*Source)(nil)
