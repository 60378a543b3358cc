package transport

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
)

// Address identifies an actor: a host, a port, and the actor's local
// name on that endpoint. Addresses are comparable with ==, so they can
// key maps and sets directly.
type Address struct {
	Host string
	Port int
	Name string
}

// Endpoint is the (host, port) pair Address addresses over UDP, without
// the actor name.
func (a Address) Endpoint() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

func (a Address) String() string {
	return fmt.Sprintf("%s/%s", a.Endpoint(), a.Name)
}

// Less gives Address a total order: host, then port, then name. Used for
// the lexicographic proposer sort that derives ballot seeds.
func (a Address) Less(other Address) bool {
	if a.Host != other.Host {
		return a.Host < other.Host
	}
	if a.Port != other.Port {
		return a.Port < other.Port
	}
	return a.Name < other.Name
}

// SortAddresses returns a new, ascending-sorted copy per Address.Less.
func SortAddresses(addrs []Address) []Address {
	sorted := make([]Address, len(addrs))
	copy(sorted, addrs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	return sorted
}

// ParseEndpoint parses a "host:port" string into a host and port, the
// form the process bootstrap's command-line arguments use.
func ParseEndpoint(hostport string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return "", 0, fmt.Errorf("transport: invalid endpoint %q: %w", hostport, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("transport: invalid port in %q: %w", hostport, err)
	}
	return host, port, nil
}

// WithName returns the Address for actorName at this host:port.
func WithName(hostport, actorName string) (Address, error) {
	host, port, err := ParseEndpoint(hostport)
	if err != nil {
		return Address{}, err
	}
	return Address{Host: host, Port: port, Name: actorName}, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseEndpoints splits a comma-separated list of "host:port" pairs, the
// form the process bootstrap accepts for its peer list.
func ParseEndpoints(csv string) ([]string, error) {
	endpoints := splitCSV(csv)
	for _, e := range endpoints {
		if _, _, err := ParseEndpoint(e); err != nil {
			return nil, err
		}
	}
	return endpoints, nil
}
