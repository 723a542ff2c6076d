package broker

type Vhost struct {
	Name string `json:"name"`
}

type Queue struct {
	Name  string `json:"name"`
	Vhost string `json:"vhost,omitempty"`
}

type Exchange struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Vhost string `json:"vhost,omitempty"`
}

// Binding as returned by /api/queues/{vhost}/{name}/bindings. An empty
// Source is the default exchange.
type Binding struct {
	Source          string `json:"source"`
	Destination     string `json:"destination"`
	DestinationType string `json:"destination_type,omitempty"`
	RoutingKey      string `json:"routing_key"`
}

// QueueStats is the subset of /api/queues/{vhost}/{name} used to draw flows.
// Incoming is only reported when the management plugin runs in detailed
// rates mode.
type QueueStats struct {
	Name     string     `json:"name"`
	Incoming []Incoming `json:"incoming,omitempty"`
}

type Incoming struct {
	Exchange ExchangeRef  `json:"exchange"`
	Stats    MessageStats `json:"stats"`
}

type ExchangeRef struct {
	Name  string `json:"name"`
	Vhost string `json:"vhost,omitempty"`
}

type MessageStats struct {
	Publish        int64       `json:"publish"`
	PublishDetails RateDetails `json:"publish_details"`
}

type RateDetails struct {
	Rate float64 `json:"rate"`
}
