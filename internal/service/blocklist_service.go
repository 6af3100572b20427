package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"splatchain-ledger/internal/core/domain"
	"splatchain-ledger/internal/core/ports"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// BlockList is the remote deny-list document.
type BlockList struct {
	BlockedUsernames []string `yaml:"blocked_usernames"`
	BlockedUserIDs   idList   `yaml:"blocked_user_ids"`
	BlockedServers   idList   `yaml:"blocked_servers"`
}

// idList keeps ids as their literal text, whether published bare or quoted.
type idList []string

func (l *idList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: expected a list of ids", node.Line)
	}
	out := make(idList, 0, len(node.Content))
	for _, n := range node.Content {
		if n.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: id must be a scalar", n.Line)
		}
		out = append(out, n.Value)
	}
	*l = out
	return nil
}

// ParseBlockList decodes a deny-list document.
func ParseBlockList(r io.Reader) (*BlockList, error) {
	var bl BlockList
	if err := yaml.NewDecoder(r).Decode(&bl); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decoding block list: %w", err)
	}
	return &bl, nil
}

type blockSet struct {
	usernames map[string]struct{}
	userIDs   map[string]struct{}
	servers   map[string]struct{}
}

func newBlockSet(bl *BlockList) *blockSet {
	set := func(values []string) map[string]struct{} {
		m := make(map[string]struct{}, len(values))
		for _, v := range values {
			m[v] = struct{}{}
		}
		return m
	}
	return &blockSet{
		usernames: set(bl.BlockedUsernames),
		userIDs:   set(bl.BlockedUserIDs),
		servers:   set(bl.BlockedServers),
	}
}

func (b *blockSet) has(m map[string]struct{}, key string) bool {
	if key == "" {
		return false
	}
	_, ok := m[key]
	return ok
}

// BlockListOptions configures the deny-list gate.
type BlockListOptions struct {
	Enabled      bool
	BlockServers bool
	URL          string
}

// BlockListService implements ports.BlockChecker from a periodically
// refreshed remote YAML feed. When disabled nobody is blocked.
type BlockListService struct {
	opts       BlockListOptions
	httpClient HTTPClient
	log        zerolog.Logger

	mu   sync.RWMutex
	list *blockSet
}

var _ ports.BlockChecker = (*BlockListService)(nil)

// NewBlockListService creates a block list gate with an empty list.
func NewBlockListService(opts BlockListOptions, httpClient HTTPClient, log zerolog.Logger) *BlockListService {
	return &BlockListService{
		opts:       opts,
		httpClient: httpClient,
		log:        log.With().Str("component", "blocklist").Logger(),
		list:       newBlockSet(&BlockList{}),
	}
}

// Enabled reports whether the gate is active.
func (s *BlockListService) Enabled() bool {
	return s.opts.Enabled
}

// Refresh fetches the feed and swaps in the new list. On failure the previous
// list stays in effect.
func (s *BlockListService) Refresh(ctx context.Context) error {
	if !s.opts.Enabled {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("creating block list request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching block list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching block list: status %d", resp.StatusCode)
	}

	bl, err := ParseBlockList(resp.Body)
	if err != nil {
		return err
	}
	s.Set(bl)

	s.log.Info().
		Int("usernames", len(bl.BlockedUsernames)).
		Int("user_ids", len(bl.BlockedUserIDs)).
		Int("servers", len(bl.BlockedServers)).
		Msg("block list loaded")
	return nil
}

// Set replaces the active list.
func (s *BlockListService) Set(bl *BlockList) {
	set := newBlockSet(bl)
	s.mu.Lock()
	s.list = set
	s.mu.Unlock()
}

// Blocked reports whether the caller must be refused. The actor's handle is
// matched against blocked usernames, the user id against blocked ids, and,
// when server enforcement is on, the server id against blocked servers.
func (s *BlockListService) Blocked(claims *ports.ActorClaims) bool {
	if !s.opts.Enabled || claims == nil {
		return false
	}

	s.mu.RLock()
	list := s.list
	s.mu.RUnlock()

	if list.has(list.usernames, domain.IdentityHandle(claims.Actor)) {
		return true
	}
	if list.has(list.userIDs, claims.UserID) {
		return true
	}
	if s.opts.BlockServers && list.has(list.servers, claims.ServerID) {
		return true
	}
	return false
}

// Run refreshes the list every interval until ctx is cancelled.
func (s *BlockListService) Run(ctx context.Context, interval time.Duration) {
	if !s.opts.Enabled || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.log.Warn().Err(err).Msg("block list refresh failed, keeping previous list")
			}
		}
	}
}
