package security

import "github.com/6R1M5L07H/shopcore/configs"

// ClientStore resolves API clients for the token endpoint. Clients and their
// permission sets come from config, not from a hardcoded table.
type ClientStore struct {
	clients map[string]configs.Client
}

func NewClientStore(cfg configs.Config) *ClientStore {
	m := make(map[string]configs.Client, len(cfg.Security.Clients))
	for _, c := range cfg.Security.Clients {
		m[c.ID] = c
	}
	return &ClientStore{clients: m}
}

func (s *ClientStore) Lookup(id string) (configs.Client, bool) {
	c, ok := s.clients[id]
	return c, ok
}
