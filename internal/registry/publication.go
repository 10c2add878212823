package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const maxRegistryBytes = 16 << 20

// Publication fetches the registry published for a network.
type Publication struct {
	url    string
	client *http.Client
	cache  *cache.Cache
	logger *zap.Logger
}

// NewPublication creates a source for network's registry. urlTemplate may hold
// one %s verb for the network name. Fetched registries are kept for ttl.
func NewPublication(urlTemplate, network string, ttl time.Duration, logger *zap.Logger) *Publication {
	url := urlTemplate
	if strings.Contains(urlTemplate, "%s") {
		url = fmt.Sprintf(urlTemplate, network)
	}
	return &Publication{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
		cache:  cache.New(ttl, 2*ttl),
		logger: logger.Named("registry_publication"),
	}
}

func (p *Publication) URL() string {
	return p.url
}

// Latest returns the published registry, from cache when fresh.
func (p *Publication) Latest(ctx context.Context) (*Registry, error) {
	if cached, ok := p.cache.Get(p.url); ok {
		return cached.(*Registry), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("Failed to fetch published registry", zap.String("url", p.url), zap.Error(err))
		return nil, fmt.Errorf("failed to fetch registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch registry: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRegistryBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	reg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	p.cache.SetDefault(p.url, reg)
	p.logger.Info("Fetched published registry", zap.String("id", reg.ID()), zap.Int("contracts", len(reg.entries)))
	return reg, nil
}
