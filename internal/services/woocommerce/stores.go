package woocommerce

// Stores routes calls between the primary store and, in network installs,
// the separate store that owns order storage.
type Stores struct {
	primary *Client
	orders  *Client
}

// NewStores builds the routing pair. orders may be nil when order storage
// lives on the primary store.
func NewStores(primary, orders *Client) *Stores {
	return &Stores{primary: primary, orders: orders}
}

// Primary returns the default store client.
func (s *Stores) Primary() *Client {
	return s.primary
}

// Remote reports whether orders live on a different store.
func (s *Stores) Remote() bool {
	return s.orders != nil
}

// WithOrdersStore runs fn against the store that owns order storage. The
// scope ends when fn returns, so the default scope is restored on every exit
// path, error or not.
func (s *Stores) WithOrdersStore(fn func(c *Client) error) error {
	c := s.primary
	if s.orders != nil {
		c = s.orders
	}
	return fn(c)
}
