package trafficlight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/goccy/go-yaml"
)

const (
	DefaultListenAddr = ":8080"
)

type Config struct {
	Responder *ResponderConfig  `yaml:"responder"`
	Lights    []*LightConfig    `yaml:"lights"`
	Notifiers []*NotifierConfig `yaml:"notifiers"`
}

type ResponderConfig struct {
	Addr string `yaml:"addr"`
}

type LightConfig struct {
	ID       string        `yaml:"id"`
	MinCycle time.Duration `yaml:"min_cycle"`
	MaxCycle time.Duration `yaml:"max_cycle"`
	Tick     time.Duration `yaml:"tick"`
}

type NotifierConfig struct {
	Name    string        `yaml:"name"`
	Timeout time.Duration `yaml:"timeout"`

	Command *CommandNotifierConfig `yaml:"command"`
	Webhook *WebhookNotifierConfig `yaml:"webhook"`
	Redis   *RedisNotifierConfig   `yaml:"redis"`
}

func LoadConfig(ctx context.Context, src string) (*Config, error) {
	b, err := loadURL(ctx, src)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

// ParseConfig decodes YAML, fills in defaults and validates the result.
func ParseConfig(b []byte) (*Config, error) {
	config := &Config{
		Responder: &ResponderConfig{
			Addr: DefaultListenAddr,
		},
	}
	if err := yaml.Unmarshal(b, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if config.Responder == nil {
		config.Responder = &ResponderConfig{}
	}
	if config.Responder.Addr == "" {
		config.Responder.Addr = DefaultListenAddr
	}
	for _, l := range config.Lights {
		if l.MinCycle == 0 {
			l.MinCycle = DefaultMinCycle
		}
		if l.MaxCycle == 0 {
			l.MaxCycle = DefaultMaxCycle
		}
		if l.Tick == 0 {
			l.Tick = DefaultTick
		}
	}
	for _, n := range config.Notifiers {
		if n.Timeout == 0 {
			n.Timeout = DefaultNotifyTimeout
		}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if len(c.Lights) == 0 {
		return errors.New("no lights configured")
	}
	seen := make(map[string]bool, len(c.Lights))
	for i, l := range c.Lights {
		if l.ID == "" {
			return fmt.Errorf("lights[%d]: id is required", i)
		}
		if seen[l.ID] {
			return fmt.Errorf("lights[%d]: duplicate id %s", i, l.ID)
		}
		seen[l.ID] = true
		if l.MinCycle < 0 || l.MaxCycle < l.MinCycle {
			return fmt.Errorf("lights[%d]: invalid cycle range %s-%s", i, l.MinCycle, l.MaxCycle)
		}
		if l.MinCycle < time.Millisecond {
			return fmt.Errorf("lights[%d]: min_cycle must be at least 1ms", i)
		}
		if l.Tick < 0 {
			return fmt.Errorf("lights[%d]: tick must be positive", i)
		}
	}
	for i, n := range c.Notifiers {
		kinds := 0
		for _, set := range []bool{n.Command != nil, n.Webhook != nil, n.Redis != nil} {
			if set {
				kinds++
			}
		}
		if kinds != 1 {
			return fmt.Errorf("notifiers[%d]: exactly one of command, webhook or redis is required", i)
		}
	}
	return nil
}

func loadURL(ctx context.Context, s string) ([]byte, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid url %s: %w", s, err)
	}
	switch u.Scheme {
	case "http", "https":
		return loadHTTP(ctx, u)
	case "file", "": // empty scheme is treated as file
		return os.ReadFile(u.Path)
	case "s3":
		return loadS3(ctx, u)
	default:
		return nil, fmt.Errorf("invalid url %s: scheme must be http, https, file, or s3", s)
	}
}

func loadHTTP(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("http get failed: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http get failed: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func loadS3(ctx context.Context, u *url.URL) ([]byte, error) {
	awscfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	svc := s3.NewFromConfig(awscfg)
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	out, err := svc.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object s3://%s/%s failed: %w", bucket, key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
